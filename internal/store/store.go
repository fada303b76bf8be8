// Package store implements the reactive state container driving every
// feature module: a single mutable state cell per feature, asynchronous
// intents that reduce new states into it, and a fire-and-forget side-effect
// channel for one-shot notifications (navigation, toasts, errors).
package store

import (
	"context"
	"log/slog"
	"sync"
)

// effectBuffer is the per-subscriber channel capacity. Sends never block:
// a full subscriber drops effects, matching the at-most-once contract.
const effectBuffer = 16

// Store serializes all state transitions for one feature behind a single
// cell while intents run arbitrarily long asynchronous work. A Store is
// scoped to the ctx given at construction; when that scope ends all in-flight
// intents are cancelled and the store is dead.
type Store[S any] struct {
	mu    sync.Mutex
	state S
	rev   uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	subMu      sync.Mutex
	effectSubs map[uint64]chan Effect
	stateSubs  map[uint64]chan S
	nextSub    uint64

	logger *slog.Logger
}

// New creates a store holding initial, scoped to ctx.
func New[S any](ctx context.Context, initial S, logger *slog.Logger) *Store[S] {
	if logger == nil {
		logger = slog.Default()
	}
	scope, cancel := context.WithCancel(ctx)
	return &Store[S]{
		state:      initial,
		ctx:        scope,
		cancel:     cancel,
		effectSubs: make(map[uint64]chan Effect),
		stateSubs:  make(map[uint64]chan S),
		logger:     logger,
	}
}

// State returns the current state snapshot.
func (s *Store[S]) State() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe attaches a side-effect subscriber. Effects are delivered
// at-most-once with no replay: anything emitted while nobody (or a full
// subscriber) listens is dropped. The returned func detaches the subscriber.
func (s *Store[S]) Subscribe() (<-chan Effect, func()) {
	ch := make(chan Effect, effectBuffer)
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.effectSubs[id] = ch
	s.subMu.Unlock()
	return ch, func() {
		s.subMu.Lock()
		if _, ok := s.effectSubs[id]; ok {
			delete(s.effectSubs, id)
			close(ch)
		}
		s.subMu.Unlock()
	}
}

// Watch attaches a state subscriber receiving every applied state. Like
// effects, delivery is non-blocking: a slow watcher misses intermediate
// states but can always re-read State().
func (s *Store[S]) Watch() (<-chan S, func()) {
	ch := make(chan S, effectBuffer)
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.stateSubs[id] = ch
	s.subMu.Unlock()
	return ch, func() {
		s.subMu.Lock()
		if _, ok := s.stateSubs[id]; ok {
			delete(s.stateSubs, id)
			close(ch)
		}
		s.subMu.Unlock()
	}
}

// Close ends the store scope: cancels all in-flight intents, waits for them
// to finish, and detaches all subscribers.
func (s *Store[S]) Close() {
	s.cancel()
	s.wg.Wait()
	s.subMu.Lock()
	for id, ch := range s.effectSubs {
		delete(s.effectSubs, id)
		close(ch)
	}
	for id, ch := range s.stateSubs {
		delete(s.stateSubs, id)
		close(ch)
	}
	s.subMu.Unlock()
}

// Wait blocks until every intent launched so far has finished.
func (s *Store[S]) Wait() {
	s.wg.Wait()
}

// Job is the handle of one intent invocation. Only modules that need
// explicit cancellation or joining keep it.
type Job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the invocation: no further reduces or effects from it will
// apply. State already applied is not rolled back.
func (j *Job) Cancel() { j.cancel() }

// Join blocks until the invocation finishes.
func (j *Job) Join() { <-j.done }

// Done exposes the completion channel.
func (j *Job) Done() <-chan struct{} { return j.done }

// Intent launches a named asynchronous state transition on the store scope.
// Each invocation is an independent concurrent task; modules that must not
// overlap invocations track and cancel the returned Job themselves.
func (s *Store[S]) Intent(name string, fn func(ctx context.Context, tx *Tx[S])) *Job {
	ctx, cancel := context.WithCancel(s.ctx)
	job := &Job{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	seen := s.rev
	s.mu.Unlock()

	tx := &Tx[S]{store: s, name: name, ctx: ctx, seen: seen}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(job.done)
		defer cancel()
		fn(ctx, tx)
	}()
	return job
}

// Tx is the transition handle passed to an intent. All methods are safe for
// use from the intent's goroutine only.
type Tx[S any] struct {
	store *Store[S]
	name  string
	ctx   context.Context
	seen  uint64
}

// State returns the current state and marks it observed, so a following
// Reduce is considered fresh relative to this read.
func (t *Tx[S]) State() S {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.seen = t.store.rev
	return t.store.state
}

// Update atomically patches the latest state. The reducer receives the
// state as of apply time, so field-wise patches from concurrent intents
// compose instead of clobbering. Returns false only when the invocation
// was cancelled.
func (t *Tx[S]) Update(fn func(S) S) bool {
	if t.ctx.Err() != nil {
		return false
	}
	t.store.mu.Lock()
	t.store.state = fn(t.store.state)
	t.store.rev++
	t.seen = t.store.rev
	next := t.store.state
	t.store.mu.Unlock()
	t.store.notifyState(next)
	return true
}

// Reduce atomically replaces the state, but only when no other intent has
// reduced since this intent last observed it (at launch, via State, or via
// its own previous reduce). A stale reduce is dropped and reported with a
// false return; the intent may re-read State and retry if it still wants to
// win. Reduces issued by one intent apply in issuance order.
func (t *Tx[S]) Reduce(fn func(S) S) bool {
	if t.ctx.Err() != nil {
		return false
	}
	t.store.mu.Lock()
	if t.store.rev != t.seen {
		stale := t.store.rev
		t.store.mu.Unlock()
		t.store.logger.Debug("dropping stale reduce", "intent", t.name, "seen", t.seen, "rev", stale)
		return false
	}
	t.store.state = fn(t.store.state)
	t.store.rev++
	t.seen = t.store.rev
	next := t.store.state
	t.store.mu.Unlock()
	t.store.notifyState(next)
	return true
}

// Post emits a one-shot side effect to whoever is currently subscribed.
// Nothing is buffered for late subscribers. Cancelled invocations emit
// nothing.
func (t *Tx[S]) Post(effect Effect) {
	if t.ctx.Err() != nil {
		return
	}
	t.store.notifyEffect(effect)
}

// Sub runs fn as a sub-intent: same tx, same atomic-reduce and side-effect
// guarantees, not independently cancellable. Used to factor shared
// error-handling out of top-level intents.
func (t *Tx[S]) Sub(fn func(ctx context.Context, tx *Tx[S])) {
	fn(t.ctx, t)
}

func (s *Store[S]) notifyEffect(effect Effect) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.effectSubs {
		select {
		case ch <- effect:
		default: // subscriber full, drop
		}
	}
}

func (s *Store[S]) notifyState(state S) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.stateSubs {
		select {
		case ch <- state:
		default:
		}
	}
}
