// README: Session store backed by a Redis key, publishing every write for status readers.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	recordKey    = "session"
	eventsSuffix = "session:events"
)

// Event is published on the events channel after every Set or Clear.
// Session is nil for a cleared record.
type Event struct {
	Type    string   `json:"type"`
	Session *Session `json:"session,omitempty"`
}

const (
	EventSet     = "set"
	EventCleared = "cleared"
)

type RedisStore struct {
	redis  *redis.Client
	prefix string
}

// NewRedisStore stores the record at prefix+"session". An empty prefix is allowed.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key() string     { return s.prefix + recordKey }
func (s *RedisStore) Channel() string { return s.prefix + eventsSuffix }

func (s *RedisStore) Get(ctx context.Context) (*Session, error) {
	val, err := s.redis.Get(ctx, s.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session record: %w", err)
	}
	var rec Session
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("decoding session record: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) Set(ctx context.Context, rec *Session) error {
	if rec == nil {
		return errors.New("nil session")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	event, err := json.Marshal(Event{Type: EventSet, Session: rec})
	if err != nil {
		return err
	}
	pipe := s.redis.Pipeline()
	pipe.Set(ctx, s.key(), payload, 0)
	pipe.Publish(ctx, s.Channel(), event)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing session record: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	event, err := json.Marshal(Event{Type: EventCleared})
	if err != nil {
		return err
	}
	pipe := s.redis.Pipeline()
	pipe.Del(ctx, s.key())
	pipe.Publish(ctx, s.Channel(), event)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clearing session record: %w", err)
	}
	return nil
}

// Subscribe streams store events until ctx is done. The returned channel is
// closed when the subscription ends.
func (s *RedisStore) Subscribe(ctx context.Context) (<-chan Event, error) {
	sub := s.redis.Subscribe(ctx, s.Channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", s.Channel(), err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
