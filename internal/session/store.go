package session

import (
	"context"
	"sync/atomic"
)

// Store holds the current session for one consumer scope. It is written once
// when hydrated and afterwards only replaced wholesale (login) or cleared
// (logout); readers never observe a partially updated value.
type Store struct {
	current atomic.Pointer[Session]
}

func NewStore(initial *Session) *Store {
	s := &Store{}
	if initial != nil {
		copied := *initial
		s.current.Store(&copied)
	}
	return s
}

func (s *Store) Current() (Session, bool) {
	if s == nil {
		return Session{}, false
	}
	p := s.current.Load()
	if p == nil {
		return Session{}, false
	}
	return *p, true
}

func (s *Store) Replace(next Session) {
	s.current.Store(&next)
}

func (s *Store) Clear() {
	s.current.Store(nil)
}

type storeContextKey struct{}

func WithStore(ctx context.Context, store *Store) context.Context {
	return context.WithValue(ctx, storeContextKey{}, store)
}

func StoreFromContext(ctx context.Context) (*Store, bool) {
	if ctx == nil {
		return nil, false
	}
	store, ok := ctx.Value(storeContextKey{}).(*Store)
	return store, ok && store != nil
}

// FromContext returns the session hydrated for the current request.
func FromContext(ctx context.Context) (Session, bool) {
	store, ok := StoreFromContext(ctx)
	if !ok {
		return Session{}, false
	}
	return store.Current()
}

// ContextTokens supplies the bearer token of the request-scoped session.
type ContextTokens struct{}

func (ContextTokens) Token(ctx context.Context) string {
	s, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return s.Info.Token
}
