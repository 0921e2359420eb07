package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func dialWS(t *testing.T, server *httptest.Server, authz string) *websocket.Conn {
	t.Helper()
	wsURL := strings.Replace(server.URL, "http", "ws", 1) + "/ws"
	header := http.Header{}
	header.Set("Authorization", authz)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) (string, taskJSON) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read ws message: %v", err)
	}
	var event struct {
		Kind string   `json:"kind"`
		Task taskJSON `json:"task"`
	}
	if err := json.Unmarshal(message, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return event.Kind, event.Task
}

// every mutation must reach the owner's websocket as a change event
func TestWebSocket_ChangeEventsReachOwner(t *testing.T) {
	_, mux, dbx, secret := setupHTTP(t)
	defer dbx.Close()

	server := httptest.NewServer(mux)
	defer server.Close()

	userID := uuid.New().String()
	authz := bearerForUser(t, secret, userID)

	conn := dialWS(t, server, authz)
	defer conn.Close()

	// insert
	created := createTaskHTTP(t, mux, authz, "watched", "")
	kind, task := readEvent(t, conn)
	if kind != "insert" || task.ID != created.ID {
		t.Fatalf("event=%s task=%s, want insert %s", kind, task.ID, created.ID)
	}

	// update
	update := `{"title":"watched closely"}`
	req := httptest.NewRequest(http.MethodPut, "/tasks/"+created.ID, bytes.NewBufferString(update))
	req.Header.Set("Authorization", authz)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status=%d", rec.Code)
	}
	kind, task = readEvent(t, conn)
	if kind != "update" || task.Title != "watched closely" {
		t.Fatalf("event=%s title=%q, want update", kind, task.Title)
	}

	// delete
	req2 := httptest.NewRequest(http.MethodDelete, "/tasks/"+created.ID, nil)
	req2.Header.Set("Authorization", authz)
	rec2 := httptest.NewRecorder()
	mux.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rec2.Code)
	}
	kind, task = readEvent(t, conn)
	if kind != "delete" || task.ID != created.ID {
		t.Fatalf("event=%s task=%s, want delete %s", kind, task.ID, created.ID)
	}
}

// the feed is scoped per user: other users' mutations stay invisible
func TestWebSocket_NoEventsForForeignTasks(t *testing.T) {
	_, mux, dbx, secret := setupHTTP(t)
	defer dbx.Close()

	server := httptest.NewServer(mux)
	defer server.Close()

	authA := bearerForUser(t, secret, uuid.New().String())
	authB := bearerForUser(t, secret, uuid.New().String())

	connB := dialWS(t, server, authB)
	defer connB.Close()

	createTaskHTTP(t, mux, authA, "not yours", "")

	connB.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := connB.ReadMessage(); err == nil {
		t.Fatalf("userB received an event for userA's task")
	}
}

func TestWebSocket_RequiresToken(t *testing.T) {
	_, mux, dbx, _ := setupHTTP(t)
	defer dbx.Close()

	server := httptest.NewServer(mux)
	defer server.Close()

	wsURL := strings.Replace(server.URL, "http", "ws", 1) + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("dial without token should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake response, got %+v", resp)
	}
}
