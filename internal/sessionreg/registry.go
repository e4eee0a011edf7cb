package sessionreg

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Factory spawns and hands shakes a brand-new Session for the given
// session key and effective cwd. Injected by the caller (adapter.go)
// so this package stays free of transport/launch wiring details and is
// independently testable with a fake factory.
type Factory func(ctx context.Context, key, effectiveCWD string) (*Session, error)

// Terminate sends SIGTERM to a session's child and discards it. Injected
// for the same reason as Factory.
type Terminate func(*Session)

// inflight tracks one in-progress EnsureSession call so concurrent callers
// for the same key observe a single handshake.
type inflight struct {
	done    chan struct{}
	session *Session
	err     error
}

// Registry is the session-key → Session cache, with concurrent-init
// dedup and cwd-invalidation.
type Registry struct {
	log       *zap.Logger
	factory   Factory
	terminate Terminate

	mu       sync.Mutex
	sessions map[string]*Session
	pending  map[string]*inflight
}

// New constructs a Registry. factory and terminate must be non-nil.
func New(log *zap.Logger, factory Factory, terminate Terminate) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		log:       log,
		factory:   factory,
		terminate: terminate,
		sessions:  make(map[string]*Session),
		pending:   make(map[string]*inflight),
	}
}

// Ensure dedups concurrent init, reuses a live session whose cwd hasn't
// changed, and invalidates + re-inits one whose cwd has.
func (r *Registry) Ensure(ctx context.Context, key, effectiveCWD string) (*Session, error) {
	for {
		r.mu.Lock()

		if fut, ok := r.pending[key]; ok {
			r.mu.Unlock()
			<-fut.done
			if fut.err != nil {
				return nil, fut.err
			}
			// Another goroutine's init may have landed with a different cwd
			// than this caller wants; loop to re-evaluate against it.
			continue
		}

		var stale *Session
		if sess, ok := r.sessions[key]; ok {
			if sess.CWD == effectiveCWD {
				r.mu.Unlock()
				return sess, nil
			}
			// cwd changed: invalidate and fall through to a fresh init.
			delete(r.sessions, key)
			stale = sess
		}

		// Install the pending marker in the same critical section as the
		// invalidation above, before terminate (which runs unlocked) has a
		// chance to run: otherwise a concurrent Ensure(key) could observe
		// neither a session nor a pending entry and spawn a second child
		// for this key.
		fut := &inflight{done: make(chan struct{})}
		r.pending[key] = fut
		r.mu.Unlock()

		if stale != nil {
			r.terminate(stale)
		}

		sess, err := r.factory(ctx, key, effectiveCWD)

		r.mu.Lock()
		if err == nil {
			r.sessions[key] = sess
		}
		delete(r.pending, key)
		r.mu.Unlock()

		fut.session, fut.err = sess, err
		close(fut.done)

		return sess, err
	}
}

// Get returns the live session for key, if any.
func (r *Registry) Get(key string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	return s, ok
}

// Remove drops key from the registry without terminating its child
// (used when the caller has already observed the child exit).
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	delete(r.sessions, key)
	r.mu.Unlock()
}

// RemoveIfCurrent drops key only if it still maps to sess. Guards against
// a stale exit-watcher goroutine (from a session already superseded by
// cwd-change invalidation) clobbering a newer session registered under
// the same key.
func (r *Registry) RemoveIfCurrent(key string, sess *Session) {
	r.mu.Lock()
	if r.sessions[key] == sess {
		delete(r.sessions, key)
	}
	r.mu.Unlock()
}

// Close terminates and removes the session for key, if live. No-op if
// the key is unknown.
func (r *Registry) Close(key string) {
	r.mu.Lock()
	sess, ok := r.sessions[key]
	if ok {
		delete(r.sessions, key)
	}
	r.mu.Unlock()
	if ok {
		r.terminate(sess)
	}
}

// CloseAll terminates and empties every live session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, sess := range sessions {
		r.terminate(sess)
	}
}

// Keys returns a snapshot of currently live session keys.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.sessions))
	for k := range r.sessions {
		keys = append(keys, k)
	}
	return keys
}
