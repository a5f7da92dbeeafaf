package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"

	"drivesafe/internal/modules/session"
)

type stubSender struct {
	got *messaging.Message
	err error
}

func (s *stubSender) Send(_ context.Context, msg *messaging.Message) (string, error) {
	s.got = msg
	if s.err != nil {
		return "", s.err
	}
	return "projects/x/messages/1", nil
}

func finished(reason session.Reason) session.Session {
	start := time.Date(2025, 5, 30, 7, 0, 0, 0, time.UTC)
	end := start.Add(12 * time.Minute)
	return session.Session{
		ID: "sess-1", Status: session.StatusCompleted, CreatedAt: start, LastActivity: end,
		CompletedAt: &end, Reason: reason, Samples: 140, DistanceKm: 6.3,
	}
}

func TestTripCompleted(t *testing.T) {
	sender := &stubSender{}
	n := NewNotifier(sender, "device-token")

	if err := n.TripCompleted(context.Background(), finished(session.ReasonNormal)); err != nil {
		t.Fatalf("notify: %v", err)
	}
	msg := sender.got
	if msg == nil || msg.Token != "device-token" {
		t.Fatalf("message = %+v", msg)
	}
	if msg.Data["type"] != "trip_completed" || msg.Data["session_id"] != "sess-1" || msg.Data["samples"] != "140" {
		t.Errorf("data = %v", msg.Data)
	}
	if msg.Notification.Title != "Live trip session completed" || msg.Notification.Body != "6.3 km in 12m0s" {
		t.Errorf("notification = %+v", msg.Notification)
	}
}

func TestTripCompleted_OfflineMentionsConnection(t *testing.T) {
	sender := &stubSender{}
	n := NewNotifier(sender, "device-token")
	if err := n.TripCompleted(context.Background(), finished(session.ReasonOffline)); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if !strings.Contains(sender.got.Notification.Body, "connection lost") || sender.got.Data["reason"] != "offline" {
		t.Errorf("message = %+v", sender.got)
	}
}

func TestTripCompleted_Errors(t *testing.T) {
	if err := NewNotifier(&stubSender{}, "").TripCompleted(context.Background(), finished("")); err == nil {
		t.Errorf("expected error without a device token")
	}
	sender := &stubSender{err: errors.New("unregistered")}
	if err := NewNotifier(sender, "tok").TripCompleted(context.Background(), finished("")); err == nil {
		t.Errorf("expected send error")
	}
}
