// README: Kafka mirror of forwarded samples and session-end events, keyed by session id.
package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"drivesafe/internal/modules/telemetry"
	"drivesafe/internal/types"
)

const (
	eventHeader = "event"
	eventSample = "sample"
	eventEnd    = "end"
)

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaMirror publishes a copy of the live stream so analytics consumers do
// not depend on the ingestion backend. Keying by session id keeps a trip on
// one partition, in order.
type KafkaMirror struct {
	w messageWriter
}

func NewKafkaMirror(brokers []string, topic string) *KafkaMirror {
	return newKafkaMirror(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 2 * time.Second,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
	})
}

func newKafkaMirror(w messageWriter) *KafkaMirror {
	return &KafkaMirror{w: w}
}

type endEvent struct {
	SessionID string `json:"sessionId"`
	EndedAt   int64  `json:"endedAt"`
}

func (m *KafkaMirror) SendLive(ctx context.Context, sessionID types.ID, s telemetry.Sample) error {
	value, err := json.Marshal(NewLivePayload(sessionID, s))
	if err != nil {
		return err
	}
	return m.write(ctx, sessionID, eventSample, value)
}

func (m *KafkaMirror) EndSession(ctx context.Context, sessionID types.ID) error {
	value, err := json.Marshal(endEvent{SessionID: string(sessionID), EndedAt: time.Now().UnixMilli()})
	if err != nil {
		return err
	}
	return m.write(ctx, sessionID, eventEnd, value)
}

func (m *KafkaMirror) write(ctx context.Context, sessionID types.ID, event string, value []byte) error {
	return m.w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(sessionID),
		Value:   value,
		Headers: []kafka.Header{{Key: eventHeader, Value: []byte(event)}},
	})
}

func (m *KafkaMirror) Close() error {
	return m.w.Close()
}
