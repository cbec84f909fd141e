package event

// Token is an opaque, application-chosen identifier copied into every
// event delivered for the source it was registered with.
type Token uint64
