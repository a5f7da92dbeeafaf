// README: Tee forwards to the primary backend and copies to best-effort mirrors.
package ingest

import (
	"context"
	"log"
	"sync"

	"drivesafe/internal/modules/telemetry"
	"drivesafe/internal/types"
)

// Sink receives live samples and session-end notifications.
type Sink interface {
	SendLive(ctx context.Context, sessionID types.ID, s telemetry.Sample) error
	EndSession(ctx context.Context, sessionID types.ID) error
}

// Tee returns the primary's error only; mirror failures are logged. Mirrors
// run alongside the primary on the caller's ctx, so a slow mirror costs no
// more than the caller's deadline.
type Tee struct {
	primary Sink
	mirrors []Sink
}

func NewTee(primary Sink, mirrors ...Sink) *Tee {
	return &Tee{primary: primary, mirrors: mirrors}
}

func (t *Tee) SendLive(ctx context.Context, sessionID types.ID, s telemetry.Sample) error {
	return t.fanOut(func(sink Sink) error {
		return sink.SendLive(ctx, sessionID, s)
	}, func(err error) {
		log.Printf("ingest: mirror sample for session %s: %v", sessionID, err)
	})
}

func (t *Tee) EndSession(ctx context.Context, sessionID types.ID) error {
	return t.fanOut(func(sink Sink) error {
		return sink.EndSession(ctx, sessionID)
	}, func(err error) {
		log.Printf("ingest: mirror end for session %s: %v", sessionID, err)
	})
}

func (t *Tee) fanOut(call func(Sink) error, logMirror func(error)) error {
	var wg sync.WaitGroup
	for _, m := range t.mirrors {
		wg.Add(1)
		go func(m Sink) {
			defer wg.Done()
			if err := call(m); err != nil {
				logMirror(err)
			}
		}(m)
	}
	err := call(t.primary)
	wg.Wait()
	return err
}
