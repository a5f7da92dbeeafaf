// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"drivesafe/internal/modules/history"
	"drivesafe/internal/modules/monitor"
	"drivesafe/internal/modules/telemetry"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// isValidID accepts uuid-shaped session ids: letters, digits and dashes, at most 64 chars.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeHistoryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, history.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writePollError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, monitor.ErrPollInFlight):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, monitor.ErrStopped):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	default:
		writeJSON(c, http.StatusBadGateway, errorResponse{Error: err.Error(), Kind: string(telemetry.Classify(err))})
	}
}
