package server

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/handswitch/internal/gesture"
)

type fakeController struct {
	mu      sync.Mutex
	enabled bool
	state   gesture.State
}

func (c *fakeController) IsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *fakeController) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

func (c *fakeController) State() gesture.State { return c.state }

func (c *fakeController) Snapshot() gesture.Observation {
	return gesture.Observation{Timestamp: 3, Count: 5, Class: gesture.Open}
}

func (c *fakeController) Cooldown() time.Duration { return 1500 * time.Millisecond }

func getStatus(t *testing.T, s *Server, method, body string) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, "/api/status", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var got map[string]any
	if rec.Code == http.StatusOK {
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode status: %v", err)
		}
	}
	return rec.Code, got
}

func TestServer_Status(t *testing.T) {
	t.Run("before any event", func(t *testing.T) {
		c := &fakeController{enabled: true, state: gesture.InitialState()}
		s := New(Config{Controller: c})

		code, got := getStatus(t, s, http.MethodGet, "")
		if code != http.StatusOK {
			t.Fatalf("expected 200, got %d", code)
		}
		if got["last_emission_time"] != nil {
			t.Errorf("expected null emission time, got %v", got["last_emission_time"])
		}
		if got["last_emitted"] != "unset" {
			t.Errorf("expected unset, got %v", got["last_emitted"])
		}
		if got["enabled"] != true || got["cooldown_seconds"] != 1.5 {
			t.Errorf("unexpected status %v", got)
		}
		obs, _ := got["observation"].(map[string]any)
		if obs["class"] != "open" || obs["count"] != float64(5) {
			t.Errorf("unexpected observation %v", obs)
		}
	})

	t.Run("after an event", func(t *testing.T) {
		c := &fakeController{state: gesture.State{LastEmitted: gesture.Closed, LastEmissionTime: 2.25}}
		s := New(Config{Controller: c})

		_, got := getStatus(t, s, http.MethodGet, "")
		if got["last_emission_time"] != 2.25 || got["last_emitted"] != "closed" {
			t.Errorf("unexpected status %v", got)
		}
	})

	t.Run("toggle", func(t *testing.T) {
		c := &fakeController{state: gesture.InitialState()}
		s := New(Config{Controller: c})

		code, got := getStatus(t, s, http.MethodPut, `{"enabled": true}`)
		if code != http.StatusOK || got["enabled"] != true || !c.IsEnabled() {
			t.Errorf("expected detection enabled, got %d %v", code, got)
		}

		if code, _ := getStatus(t, s, http.MethodPut, `{}`); code != http.StatusBadRequest {
			t.Errorf("missing enabled: expected 400, got %d", code)
		}
		if code, _ := getStatus(t, s, http.MethodDelete, ""); code != http.StatusMethodNotAllowed {
			t.Errorf("DELETE: expected 405, got %d", code)
		}
	})
}

func waitForClients(t *testing.T, hub *EventHub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventHub_Broadcast(t *testing.T) {
	hub := NewEventHub(nil)
	ts := httptest.NewServer(New(Config{Events: hub}))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForClients(t, hub, 1)

	var handler gesture.Handler = hub
	if err := handler.OnOpen(1.5); err != nil {
		t.Fatalf("OnOpen() error = %v", err)
	}
	if err := handler.OnClose(3); err != nil {
		t.Fatalf("OnClose() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range []EventMessage{
		{Type: "event", Kind: gesture.Open, Timestamp: 1.5},
		{Type: "event", Kind: gesture.Closed, Timestamp: 3},
	} {
		var got EventMessage
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("read: %v", err)
		}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	}

	conn.Close()
	waitForClients(t, hub, 0)

	// No clients: broadcasting is a no-op.
	if err := hub.OnOpen(4); err != nil {
		t.Errorf("OnOpen() without clients error = %v", err)
	}
}

func TestEventHub_Close(t *testing.T) {
	hub := NewEventHub(nil)
	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForClients(t, hub, 1)

	hub.Close()
	if hub.ClientCount() != 0 {
		t.Errorf("expected no clients after Close, got %d", hub.ClientCount())
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("expected going-away close, got %v", err)
	}
}

func TestStatusResponse_InfiniteTimeIsNull(t *testing.T) {
	c := &fakeController{state: gesture.State{LastEmitted: gesture.Unset, LastEmissionTime: math.Inf(-1)}}
	s := New(Config{Controller: c})

	resp := s.status()
	if resp.LastEmission != nil {
		t.Errorf("expected nil emission time, got %v", *resp.LastEmission)
	}
	if _, err := json.Marshal(resp); err != nil {
		t.Errorf("status must always marshal: %v", err)
	}
}
