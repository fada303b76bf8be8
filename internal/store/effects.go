package store

// Effect is a transient one-shot instruction for the UI layer: shown,
// navigated, or logged once, then gone. Effects are not state; a consumer
// needing durable delivery must re-derive the fact from the store's state.
type Effect interface{ effect() }

// Toast asks the UI to flash a short message.
type Toast struct{ Message string }

// Trace carries a diagnostic breadcrumb for the UI log view.
type Trace struct{ Message string }

// Navigate asks the UI to move to a route.
type Navigate struct{ Route Route }

// ErrorEffect reports a failure the user should see.
type ErrorEffect struct{ Err error }

// AccountExists reports the recoverable sign-in conflict: the identity
// already lives under a different provider and linking should be offered.
type AccountExists struct{ Err error }

// SyncNote reports import/sync progress worth a passing notice.
type SyncNote struct{ Message string }

func (Toast) effect()         {}
func (Trace) effect()         {}
func (Navigate) effect()      {}
func (ErrorEffect) effect()   {}
func (AccountExists) effect() {}
func (SyncNote) effect()      {}
