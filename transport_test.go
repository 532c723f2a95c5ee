package queuelink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/queuelink/pkg/channel"
	"github.com/agentstation/queuelink/pkg/events"
)

// queueServer is an in-process backend speaking the HTTP auth API and the
// websocket event stream.
type queueServer struct {
	*httptest.Server

	logouts atomic.Int32

	mu     sync.Mutex
	tokens []string
	conns  []*websocket.Conn
}

func newQueueServer(t *testing.T) *queueServer {
	t.Helper()
	qs := &queueServer{}

	grant := func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user":          map[string]any{"id": "user-1", "role": "citizen"},
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Identifier string `json:"identifier"`
			Password   string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password != creds.Secret {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
			return
		}
		grant(w)
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		qs.logouts.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /api/appointments", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})

	upgrader := websocket.Upgrader{}
	mux.HandleFunc("GET /events", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var frame struct {
			Type  string `json:"type"`
			Token string `json:"token"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		qs.mu.Lock()
		qs.tokens = append(qs.tokens, frame.Token)
		qs.conns = append(qs.conns, conn)
		qs.mu.Unlock()

		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	qs.Server = httptest.NewServer(mux)
	t.Cleanup(qs.Close)
	return qs
}

func (qs *queueServer) eventURL() string {
	return "ws" + strings.TrimPrefix(qs.URL, "http") + "/events"
}

// push writes frame to the newest stream connection.
func (qs *queueServer) push(frame []byte) error {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	if len(qs.conns) == 0 {
		return nil
	}
	return qs.conns[len(qs.conns)-1].WriteMessage(websocket.TextMessage, frame)
}

func (qs *queueServer) streamTokens() []string {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	return append([]string(nil), qs.tokens...)
}

func TestClientOverNetwork(t *testing.T) {
	qs := newQueueServer(t)
	rec := &recorder{}
	c := newTestClient(t,
		WithBaseURL(qs.URL+"/api"),
		WithEventURL(qs.eventURL()),
		WithRenderer(rec),
		WithInvalidator(rec),
		WithBackoff(channel.Backoff{Base: 10 * time.Millisecond, Max: 50 * time.Millisecond}),
	)

	s, err := c.Login(context.Background(), creds)
	require.NoError(t, err)
	assert.Equal(t, "user-1", s.UserID)

	require.Eventually(t, func() bool {
		return c.Connection().State == channel.Connected && len(qs.streamTokens()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"access-1"}, qs.streamTokens())

	frame, err := events.Encode(events.Event{
		Kind:         events.QueuePositionUpdated,
		Timestamp:    time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		TargetUserID: "user-1",
		Payload:      events.QueuePosition{QueueID: "q1", TokenNumber: "A-12", Position: 3, EstimatedWaitMinutes: 12},
	})
	require.NoError(t, err)
	require.NoError(t, qs.push(frame))

	require.Eventually(t, func() bool {
		shown, invalidated, _ := rec.snapshot()
		for _, d := range shown {
			if d.Title == "Queue update" {
				return slices.Contains(invalidated, "queue:q1")
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := c.HTTPClient().Get(qs.URL + "/api/appointments")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, c.Logout(context.Background()))
	assert.Equal(t, int32(1), qs.logouts.Load())
	require.Eventually(t, func() bool {
		return c.Connection().State == channel.Disconnected
	}, 2*time.Second, 10*time.Millisecond)
}
