package event

// Event is what the selector delivers to the application: a completion
// kind paired with the token the source was last (re)registered with.
type Event struct {
	Kind  Kind
	Token Token
}

// Pending is the (id, kind) tuple pushed through the selector's event
// channel by a registration. The id is resolved against the registrations
// map at drain time, not at push time, so that a reregistered token/interest
// is honored even for events pushed before the reregister observed them.
type Pending struct {
	ID   ID
	Kind Kind
}
