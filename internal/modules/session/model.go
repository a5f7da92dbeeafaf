// README: Trip session record, status definitions and transition table.
package session

import (
	"time"

	"drivesafe/internal/types"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Reason explains why a session completed. Empty means a normal stop.
type Reason string

const (
	ReasonNormal  Reason = ""
	ReasonOffline Reason = "offline"
)

// Session is the persisted trip record stored under the "session" key.
// ID never changes after creation.
type Session struct {
	ID           types.ID   `json:"id"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastActivity time.Time  `json:"lastActivity"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	Reason       Reason     `json:"reason,omitempty"`

	VehicleID  types.ID `json:"vehicleId,omitempty"`
	Samples    int      `json:"samples"`
	DistanceKm float64  `json:"distanceKm"`
}

func (s *Session) Active() bool {
	return s != nil && s.Status == StatusActive
}

// Duration is the elapsed trip time up to completion (or last activity while active).
func (s Session) Duration() time.Duration {
	end := s.LastActivity
	if s.CompletedAt != nil {
		end = *s.CompletedAt
	}
	if end.Before(s.CreatedAt) {
		return 0
	}
	return end.Sub(s.CreatedAt)
}

// AllowedTransitions represents the session flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusActive: {StatusActive, StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Complete returns a completed copy of an active session.
func (s Session) Complete(at time.Time, reason Reason) (Session, error) {
	if !CanTransition(s.Status, StatusCompleted) {
		return s, ErrInvalidState
	}
	s.Status = StatusCompleted
	s.CompletedAt = &at
	s.Reason = reason
	return s, nil
}

// Clone returns a copy that shares no pointers with s.
func (s Session) Clone() *Session {
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		s.CompletedAt = &t
	}
	return &s
}
