// Package session tracks whether a valid authenticated identity
// exists and gates all data operations on it.
package session

import (
	"context"
	"log"
	"sync"

	"github.com/chepyr/go-task-sync/client/auth"
)

// Guard holds the active session (or absence thereof). It is seeded
// once at startup via Seed and thereafter updated only by the identity
// client's push notifications.
type Guard struct {
	identity *auth.Client

	mu       sync.Mutex
	current  *auth.Session
	handlers []func(*auth.Session)
}

func NewGuard(identity *auth.Client) *Guard {
	g := &Guard{identity: identity}
	identity.OnChange(g.transition)
	return g
}

// Seed queries the identity service once for an existing session.
// Errors are logged and treated as signed out (fail closed).
func (g *Guard) Seed(ctx context.Context) {
	session, err := g.identity.CurrentSession(ctx)
	if err != nil {
		log.Printf("Session seed failed, treating as signed out: %v", err)
		session = nil
	}
	g.transition(session)
}

// Current returns the active session, or nil when signed out.
func (g *Guard) Current() *auth.Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// OnChange registers a handler invoked on every sign-in/sign-out
// transition.
func (g *Guard) OnChange(handler func(*auth.Session)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers = append(g.handlers, handler)
}

func (g *Guard) transition(session *auth.Session) {
	g.mu.Lock()
	g.current = session
	handlers := make([]func(*auth.Session), len(g.handlers))
	copy(handlers, g.handlers)
	g.mu.Unlock()

	for _, handler := range handlers {
		handler(session)
	}
}
