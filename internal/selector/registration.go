package selector

import "github.com/ehrlich-b/sgxnet/internal/event"

// regEntry is the selector's canonical record of a registration's current
// token and interest. Registration caches nothing locally — every read
// goes through sharedState.regMu so that ChangeDetails, PushEvent and
// Select's drain all observe the same value.
type regEntry struct {
	token    event.Token
	interest event.Interest
}

// Registration is a source's handle into a Selector: it owns an id, knows
// how to look up its own current token/interest, and can push completion
// events into the selector's queue. Dropping it (Close) removes its entry
// from the registrations map; any (id, kind) tuples already queued at that
// point are tolerated as dangling and silently skipped at drain time.
type Registration struct {
	id     event.ID
	shared *sharedState
}

// NewRegistration allocates a fresh id and inserts it into sel's
// registrations map under the given token/interest.
func NewRegistration(sel *Selector, token event.Token, interest event.Interest) *Registration {
	sh := sel.shared
	id := event.NextID()

	sh.regMu.Lock()
	sh.regs[id] = regEntry{token: token, interest: interest}
	sh.regMu.Unlock()

	if sh.observer != nil {
		sh.observer.ObserveRegistration()
	}
	if sh.logger != nil {
		sh.logger.Debug("registration added", "id", id, "token", token, "interest", interest)
	}
	return &Registration{id: id, shared: sh}
}

// ID returns the registration's process-wide unique id.
func (r *Registration) ID() event.ID { return r.id }

// Selector returns the selector this registration belongs to.
func (r *Registration) Selector() *Selector { return &Selector{shared: r.shared} }

// ChangeDetails updates the registration's token/interest and reports
// whether either field actually changed. It is idempotent when the new
// values equal the current ones.
func (r *Registration) ChangeDetails(token event.Token, interest event.Interest) bool {
	sh := r.shared
	sh.regMu.Lock()
	defer sh.regMu.Unlock()

	cur, ok := sh.regs[r.id]
	if !ok {
		// Registration was already closed; nothing to change.
		return false
	}
	changed := cur.token != token || cur.interest != interest
	if changed {
		sh.regs[r.id] = regEntry{token: token, interest: interest}
	}
	return changed
}

// Interest returns the currently recorded interest for this registration.
func (r *Registration) Interest() event.Interest {
	sh := r.shared
	sh.regMu.Lock()
	defer sh.regMu.Unlock()
	return sh.regs[r.id].interest
}

// Token returns the currently recorded token for this registration.
func (r *Registration) Token() event.Token {
	sh := r.shared
	sh.regMu.Lock()
	defer sh.regMu.Unlock()
	return sh.regs[r.id].token
}

// PushEvent is called from a completion callback once it has finished
// mutating the source's internal state. It checks kind against the
// registration's current interest (errors always pass), and on pass pushes
// the (id, kind) tuple into the selector's event queue and signals the
// provider's callback-handler latch so a thread parked in Select wakes up.
//
// If the registration has already been closed (deregistered or the source
// was dropped), this is a silent no-op: the completion still mutated
// state, but nothing observes it.
func (r *Registration) PushEvent(kind event.Kind) {
	sh := r.shared

	sh.regMu.Lock()
	entry, ok := sh.regs[r.id]
	sh.regMu.Unlock()
	if !ok {
		return
	}
	if !kind.MatchesInterest(entry.interest) {
		return
	}

	sh.queue.push(event.Pending{ID: r.id, Kind: kind})
	sh.provider.Signal()
}

// Close removes this registration's entry from the selector's map. Any
// (id, kind) tuples already queued remain in the queue and are silently
// dropped at the next drain, since the lookup will fail.
func (r *Registration) Close() {
	sh := r.shared
	sh.regMu.Lock()
	delete(sh.regs, r.id)
	sh.regMu.Unlock()

	if sh.observer != nil {
		sh.observer.ObserveDeregistration()
	}
	if sh.logger != nil {
		sh.logger.Debug("registration closed", "id", r.id)
	}
}
