// Package notify pushes trip-completed notifications to the driver's device via FCM.
package notify

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"firebase.google.com/go/v4/messaging"

	"drivesafe/internal/modules/session"
)

// Sender is satisfied by *messaging.Client.
type Sender interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

type Notifier struct {
	sender      Sender
	deviceToken string
}

func NewNotifier(sender Sender, deviceToken string) *Notifier {
	return &Notifier{sender: sender, deviceToken: deviceToken}
}

// TripCompleted tells the device a live session finished so the app can
// fetch the trip score.
func (n *Notifier) TripCompleted(ctx context.Context, s session.Session) error {
	if n.deviceToken == "" {
		return fmt.Errorf("empty device token for session %s", string(s.ID))
	}

	body := fmt.Sprintf("%.1f km in %s", s.DistanceKm, s.Duration().Round(time.Second))
	if s.Reason == session.ReasonOffline {
		body += " (OBD connection lost)"
	}
	msg := &messaging.Message{
		Token: n.deviceToken,
		Data: map[string]string{
			"type":        "trip_completed",
			"session_id":  string(s.ID),
			"reason":      string(s.Reason),
			"samples":     strconv.Itoa(s.Samples),
			"distance_km": strconv.FormatFloat(s.DistanceKm, 'f', 3, 64),
		},
		Notification: &messaging.Notification{
			Title: "Live trip session completed",
			Body:  body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}

	messageID, err := n.sender.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("sending FCM for session %s: %w", string(s.ID), err)
	}

	log.Printf("FCM sent for session %s, message_id=%s", string(s.ID), messageID)
	return nil
}
