// README: Live session handlers: status, manual end, manual poll, event stream and archive reads.
package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"drivesafe/internal/http/middleware"
	"drivesafe/internal/modules/monitor"
	"drivesafe/internal/modules/session"
	"drivesafe/internal/types"
)

type Monitor interface {
	Status() monitor.Status
	EndSession(ctx context.Context) (session.Session, bool)
	Poll(ctx context.Context) error
}

type History interface {
	List(ctx context.Context, limit int) ([]session.Session, error)
	Get(ctx context.Context, id types.ID) (session.Session, error)
}

type EventSource interface {
	Subscribe(ctx context.Context) (<-chan session.Event, error)
}

// SessionHandler serves the live session. history and events may be nil
// when no archive or Redis store is configured.
type SessionHandler struct {
	monitor Monitor
	history History
	events  EventSource
}

func NewSessionHandler(m Monitor, h History, events EventSource) *SessionHandler {
	return &SessionHandler{monitor: m, history: h, events: events}
}

func (h *SessionHandler) Status(c *gin.Context) {
	writeJSON(c, http.StatusOK, h.monitor.Status())
}

func (h *SessionHandler) End(c *gin.Context) {
	s, ended := h.monitor.EndSession(c.Request.Context())
	if !ended {
		writeJSON(c, http.StatusOK, gin.H{"ended": false})
		return
	}
	log.Printf("http: session %s ended by %s", s.ID, caller(c))
	writeJSON(c, http.StatusOK, gin.H{"ended": true, "session": s})
}

// Poll runs one cycle on demand, the "test connection" action of the UI.
func (h *SessionHandler) Poll(c *gin.Context) {
	log.Printf("http: manual poll by %s", caller(c))
	if err := h.monitor.Poll(c.Request.Context()); err != nil {
		writePollError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, h.monitor.Status())
}

// caller names the authenticated user, or "anonymous" on an open server.
func caller(c *gin.Context) string {
	uid := middleware.CallerUID(c)
	if uid == "" {
		return "anonymous"
	}
	if role := middleware.CallerRole(c); role != "" {
		return uid + " (" + role + ")"
	}
	return uid
}

// Events streams session record changes as server-sent events.
func (h *SessionHandler) Events(c *gin.Context) {
	if h.events == nil {
		writeError(c, http.StatusServiceUnavailable, "session events require the redis store")
		return
	}
	ch, err := h.events.Subscribe(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusServiceUnavailable, "session events unavailable")
		return
	}
	c.Header("Cache-Control", "no-cache")
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent(ev.Type, ev)
			c.Writer.Flush()
		}
	}
}

func (h *SessionHandler) List(c *gin.Context) {
	if h.history == nil {
		writeError(c, http.StatusServiceUnavailable, "history archive not configured")
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	sessions, err := h.history.List(c.Request.Context(), limit)
	if err != nil {
		writeHistoryError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"sessions": sessions})
}

func (h *SessionHandler) Get(c *gin.Context) {
	if h.history == nil {
		writeError(c, http.StatusServiceUnavailable, "history archive not configured")
		return
	}
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid session id")
		return
	}
	s, err := h.history.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeHistoryError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, s)
}
