// README: Tests for live session and archive handlers.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"drivesafe/internal/http/handlers"
	"drivesafe/internal/modules/history"
	"drivesafe/internal/modules/monitor"
	"drivesafe/internal/modules/session"
	"drivesafe/internal/modules/telemetry"
	"drivesafe/internal/types"
)

type stubMonitor struct {
	status  monitor.Status
	ended   *session.Session
	pollErr error
	ends    int
}

func (m *stubMonitor) Status() monitor.Status { return m.status }

func (m *stubMonitor) EndSession(context.Context) (session.Session, bool) {
	m.ends++
	if m.ended == nil {
		return session.Session{}, false
	}
	s := *m.ended
	m.ended = nil
	return s, true
}

func (m *stubMonitor) Poll(context.Context) error { return m.pollErr }

type stubHistory struct {
	sessions []session.Session
	err      error
	gotLimit int
}

func (h *stubHistory) List(_ context.Context, limit int) ([]session.Session, error) {
	h.gotLimit = limit
	return h.sessions, h.err
}

func (h *stubHistory) Get(_ context.Context, id types.ID) (session.Session, error) {
	if h.err != nil {
		return session.Session{}, h.err
	}
	for _, s := range h.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return session.Session{}, history.ErrNotFound
}

type stubEvents struct {
	events []session.Event
}

func (e *stubEvents) Subscribe(context.Context) (<-chan session.Event, error) {
	ch := make(chan session.Event, len(e.events))
	for _, ev := range e.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func buildRouter(m handlers.Monitor, h handlers.History, ev handlers.EventSource) *gin.Engine {
	gin.SetMode(gin.TestMode)
	sh := handlers.NewSessionHandler(m, h, ev)
	r := gin.New()
	r.GET("/api/session", sh.Status)
	r.GET("/api/session/events", sh.Events)
	r.POST("/api/session/end", sh.End)
	r.POST("/api/session/poll", sh.Poll)
	r.GET("/api/sessions", sh.List)
	r.GET("/api/sessions/:id", sh.Get)
	return r
}

func doRequest(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return body
}

func archived(id string) session.Session {
	at := time.Date(2025, 5, 30, 7, 0, 0, 0, time.UTC)
	return session.Session{ID: types.ID(id), Status: session.StatusCompleted, CreatedAt: at, LastActivity: at, CompletedAt: &at}
}

func TestStatus(t *testing.T) {
	active := &session.Session{ID: "sess-1", Status: session.StatusActive}
	m := &stubMonitor{status: monitor.Status{Running: true, Online: true, Session: active, Polls: 3, StaleCycles: 2}}
	w := doRequest(buildRouter(m, nil, nil), http.MethodGet, "/api/session")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decode(t, w)
	if body["running"] != true || body["online"] != true || body["polls"] != float64(3) || body["staleCycles"] != float64(2) {
		t.Errorf("body = %v", body)
	}
	if sess, _ := body["session"].(map[string]any); sess["id"] != "sess-1" {
		t.Errorf("session = %v", body["session"])
	}
}

func TestEnd_Idempotent(t *testing.T) {
	s := archived("sess-1")
	m := &stubMonitor{ended: &s}
	r := buildRouter(m, nil, nil)

	first := decode(t, doRequest(r, http.MethodPost, "/api/session/end"))
	if first["ended"] != true {
		t.Errorf("first end = %v", first)
	}
	second := doRequest(r, http.MethodPost, "/api/session/end")
	if second.Code != http.StatusOK || decode(t, second)["ended"] != false {
		t.Errorf("second end = %d %s", second.Code, second.Body.String())
	}
	if m.ends != 2 {
		t.Errorf("monitor end called %d times", m.ends)
	}
}

func TestPoll_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
		kind string
	}{
		{"ok", nil, http.StatusOK, ""},
		{"in flight", monitor.ErrPollInFlight, http.StatusConflict, ""},
		{"stopped", monitor.ErrStopped, http.StatusServiceUnavailable, ""},
		{"unreachable", fmt.Errorf("get: %w", telemetry.ErrUnreachable), http.StatusBadGateway, "network"},
		{"bad status", &telemetry.StatusError{Code: 404}, http.StatusBadGateway, "http"},
		{"parse", telemetry.ErrParse, http.StatusBadGateway, "parse"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(buildRouter(&stubMonitor{pollErr: tc.err}, nil, nil), http.MethodPost, "/api/session/poll")
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
			if tc.kind != "" && decode(t, w)["kind"] != tc.kind {
				t.Errorf("body = %s", w.Body.String())
			}
		})
	}
}

func TestHistory_NotConfigured(t *testing.T) {
	r := buildRouter(&stubMonitor{}, nil, nil)
	for _, path := range []string{"/api/sessions", "/api/sessions/sess-1"} {
		if w := doRequest(r, http.MethodGet, path); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, w.Code)
		}
	}
}

func TestList(t *testing.T) {
	h := &stubHistory{sessions: []session.Session{archived("b"), archived("a")}}
	r := buildRouter(&stubMonitor{}, h, nil)

	w := doRequest(r, http.MethodGet, "/api/sessions?limit=5")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if h.gotLimit != 5 {
		t.Errorf("limit = %d", h.gotLimit)
	}
	if list, _ := decode(t, w)["sessions"].([]any); len(list) != 2 {
		t.Errorf("sessions = %s", w.Body.String())
	}

	for _, bad := range []string{"x", "-1"} {
		if w := doRequest(r, http.MethodGet, "/api/sessions?limit="+bad); w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: expected 400, got %d", bad, w.Code)
		}
	}

	h.err = errors.New("db down")
	if w := doRequest(r, http.MethodGet, "/api/sessions"); w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestGet(t *testing.T) {
	h := &stubHistory{sessions: []session.Session{archived("3f2b-11aa")}}
	r := buildRouter(&stubMonitor{}, h, nil)

	if w := doRequest(r, http.MethodGet, "/api/sessions/3f2b-11aa"); w.Code != http.StatusOK || decode(t, w)["id"] != "3f2b-11aa" {
		t.Errorf("get = %d %s", w.Code, w.Body.String())
	}
	if w := doRequest(r, http.MethodGet, "/api/sessions/missing"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodGet, "/api/sessions/bad$id"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestEvents(t *testing.T) {
	if w := doRequest(buildRouter(&stubMonitor{}, nil, nil), http.MethodGet, "/api/session/events"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without events, got %d", w.Code)
	}

	s := archived("sess-1")
	ev := &stubEvents{events: []session.Event{
		{Type: session.EventSet, Session: &s},
		{Type: session.EventCleared},
	}}
	w := doRequest(buildRouter(&stubMonitor{}, nil, ev), http.MethodGet, "/api/session/events")
	body := w.Body.String()
	if !strings.Contains(body, "event:set") || !strings.Contains(body, "event:cleared") || !strings.Contains(body, `"sess-1"`) {
		t.Errorf("stream = %q", body)
	}
}

func TestEnd_LogsCaller(t *testing.T) {
	s := archived("sess-9")
	m := &stubMonitor{ended: &s}
	gin.SetMode(gin.TestMode)
	sh := handlers.NewSessionHandler(m, nil, nil)
	r := gin.New()
	r.POST("/api/session/end", func(c *gin.Context) {
		c.Set("caller_uid", "driver123")
		c.Set("caller_role", "driver")
		sh.End(c)
	})

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	if w := doRequest(r, http.MethodPost, "/api/session/end"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(buf.String(), "session sess-9 ended by driver123 (driver)") {
		t.Errorf("log = %q", buf.String())
	}

	buf.Reset()
	if w := doRequest(buildRouter(m, nil, nil), http.MethodPost, "/api/session/poll"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(buf.String(), "manual poll by anonymous") {
		t.Errorf("log = %q", buf.String())
	}
}
