// Package feed subscribes to the task service's websocket channel and
// delivers remote change events (insert/update/delete) in arrival
// order. The listener holds no state beyond the active subscription;
// it does not retry transient disconnects.
package feed

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/chepyr/go-task-sync/shared/models"
	"github.com/gorilla/websocket"
)

type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// Event is a single remote mutation notification. No ordering or
// deduplication guarantee beyond arrival order; consumers must stay
// idempotent under duplicates.
type Event struct {
	Kind EventKind   `json:"kind"`
	Task models.Task `json:"task"`
}

type Listener struct {
	url   string
	token func() string
}

// NewListener builds a listener for the service at baseURL
// (http:// or https://; the scheme is rewritten for the socket).
func NewListener(baseURL string, token func() string) *Listener {
	wsURL := strings.Replace(baseURL, "http", "ws", 1) + "/ws"
	return &Listener{url: wsURL, token: token}
}

// Subscription is one active feed connection.
type Subscription struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// Subscribe opens the channel and starts delivering events to onEvent
// from a reader goroutine until Unsubscribe is called or the
// connection drops.
func (l *Listener) Subscribe(onEvent func(Event)) (*Subscription, error) {
	header := http.Header{}
	if token := l.token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := websocket.DefaultDialer.Dial(l.url, header)
	if err != nil {
		return nil, fmt.Errorf("feed subscribe: %w", err)
	}

	sub := &Subscription{conn: conn}
	go sub.readLoop(onEvent)
	return sub, nil
}

// Unsubscribe tears the channel down synchronously so no further
// events are delivered after it returns.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.conn.Close()
}

func (s *Subscription) readLoop(onEvent func(Event)) {
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.closed = true
			s.mu.Unlock()
			if !closed {
				log.Printf("Feed connection lost: %v", err)
				s.conn.Close()
			}
			return
		}

		var event Event
		if err := json.Unmarshal(message, &event); err != nil {
			log.Printf("Dropping malformed feed event: %v", err)
			continue
		}
		switch event.Kind {
		case EventInsert, EventUpdate, EventDelete:
			s.deliver(onEvent, event)
		default:
			log.Printf("Dropping feed event with unknown kind %q", event.Kind)
		}
	}
}

// deliver skips events that race with Unsubscribe
func (s *Subscription) deliver(onEvent func(Event), event Event) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if !closed {
		onEvent(event)
	}
}
