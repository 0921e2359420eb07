package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chepyr/go-task-sync/shared/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// feedStub upgrades connections and lets the test push raw messages
type feedStub struct {
	server *httptest.Server
	conns  chan *websocket.Conn
	auth   chan string
}

func newFeedStub(t *testing.T) *feedStub {
	t.Helper()
	stub := &feedStub{
		conns: make(chan *websocket.Conn, 4),
		auth:  make(chan string, 4),
	}
	upgrader := websocket.Upgrader{}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		stub.auth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		stub.conns <- conn
	}))
	return stub
}

func (s *feedStub) push(t *testing.T, conn *websocket.Conn, payload any) {
	t.Helper()
	message, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func collectEvents(buf chan Event) func(Event) {
	return func(event Event) { buf <- event }
}

func TestListener_DeliversEventsInOrder(t *testing.T) {
	stub := newFeedStub(t)
	defer stub.server.Close()

	listener := NewListener(stub.server.URL, func() string { return "tok" })
	events := make(chan Event, 8)
	sub, err := listener.Subscribe(collectEvents(events))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if got := <-stub.auth; got != "Bearer tok" {
		t.Fatalf("Authorization=%q, want bearer token", got)
	}
	conn := <-stub.conns

	task := models.Task{ID: uuid.New(), Title: "t"}
	stub.push(t, conn, Event{Kind: EventInsert, Task: task})
	stub.push(t, conn, Event{Kind: EventUpdate, Task: task})
	stub.push(t, conn, Event{Kind: EventDelete, Task: task})

	want := []EventKind{EventInsert, EventUpdate, EventDelete}
	for _, kind := range want {
		select {
		case event := <-events:
			if event.Kind != kind {
				t.Fatalf("got %s, want %s", event.Kind, kind)
			}
			if event.Task.ID != task.ID {
				t.Fatalf("wrong task in event: %s", event.Task.ID)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

// malformed and unknown-kind messages are dropped, not fatal
func TestListener_SkipsMalformedEvents(t *testing.T) {
	stub := newFeedStub(t)
	defer stub.server.Close()

	listener := NewListener(stub.server.URL, func() string { return "" })
	events := make(chan Event, 8)
	sub, err := listener.Subscribe(collectEvents(events))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()
	conn := <-stub.conns

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	stub.push(t, conn, map[string]string{"kind": "mystery"})
	stub.push(t, conn, Event{Kind: EventInsert, Task: models.Task{ID: uuid.New()}})

	select {
	case event := <-events:
		if event.Kind != EventInsert {
			t.Fatalf("got %s, want the valid insert only", event.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("valid event never delivered")
	}
	select {
	case event := <-events:
		t.Fatalf("unexpected extra event: %+v", event)
	default:
	}
}

// no deliveries after Unsubscribe returns
func TestListener_UnsubscribeStopsDelivery(t *testing.T) {
	stub := newFeedStub(t)
	defer stub.server.Close()

	listener := NewListener(stub.server.URL, func() string { return "" })
	events := make(chan Event, 8)
	sub, err := listener.Subscribe(collectEvents(events))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	conn := <-stub.conns

	sub.Unsubscribe()
	message, _ := json.Marshal(Event{Kind: EventInsert, Task: models.Task{ID: uuid.New()}})
	_ = conn.WriteMessage(websocket.TextMessage, message) // may fail, conn is closed

	time.Sleep(100 * time.Millisecond)
	select {
	case event := <-events:
		t.Fatalf("event delivered after unsubscribe: %+v", event)
	default:
	}
}
