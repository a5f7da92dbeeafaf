// README: HTTP telemetry source polled by the monitor, with error classification.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	ErrUnreachable = errors.New("telemetry source unreachable")
	ErrHTTPStatus  = errors.New("telemetry source returned error status")
	ErrParse       = errors.New("telemetry payload malformed")
)

// maxBody bounds a single reading; real payloads are a few hundred bytes.
const maxBody = 1 << 20

// StatusError carries the non-2xx status code. It matches ErrHTTPStatus with errors.Is.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d", ErrHTTPStatus.Error(), e.Code)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrHTTPStatus
}

// Kind names the failure class for status reporting.
type Kind string

const (
	KindNone    Kind = ""
	KindNetwork Kind = "network"
	KindHTTP    Kind = "http"
	KindParse   Kind = "parse"
)

func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrHTTPStatus):
		return KindHTTP
	case errors.Is(err, ErrParse):
		return KindParse
	default:
		return KindNetwork
	}
}

// HTTPSource fetches one reading per call from a fixed URL (typically a phone
// sharing OBD data on the local network).
type HTTPSource struct {
	url    string
	client *http.Client
	now    func() time.Time
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

func (s *HTTPSource) URL() string { return s.url }

func (s *HTTPSource) Fetch(ctx context.Context) (Sample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return Sample{}, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Sample{}, fmt.Errorf("%w: reading body: %v", ErrUnreachable, err)
	}
	return Normalize(body, s.now())
}
