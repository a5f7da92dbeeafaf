// README: HTTP client for the trip ingestion backend (live samples and end-session).
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"drivesafe/internal/modules/telemetry"
	"drivesafe/internal/types"
)

var ErrRejected = errors.New("ingestion backend rejected request")

// RejectedError carries the backend status and its error message when present.
type RejectedError struct {
	Op      string
	Code    int
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (%d): %s", e.Op, ErrRejected.Error(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%d)", e.Op, ErrRejected.Error(), e.Code)
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// Client posts to the backend rooted at baseURL (e.g. http://localhost:8080/api).
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// SendLive posts one sample tagged with sessionID to /live.
func (c *Client) SendLive(ctx context.Context, sessionID types.ID, s telemetry.Sample) error {
	if sessionID == "" {
		return errors.New("send live: empty session id")
	}
	return c.post(ctx, "send live", c.baseURL+"/live", NewLivePayload(sessionID, s))
}

// EndSession posts to /end-session/{id}, which makes the backend score the trip.
func (c *Client) EndSession(ctx context.Context, sessionID types.ID) error {
	if sessionID == "" {
		return errors.New("end session: empty session id")
	}
	return c.post(ctx, "end session", c.baseURL+"/end-session/"+url.PathEscape(string(sessionID)), struct{}{})
}

func (c *Client) post(ctx context.Context, op, endpoint string, body any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encoding body: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return &RejectedError{Op: op, Code: resp.StatusCode, Message: backendMessage(resp.Body)}
}

// backendMessage extracts {"message": "..."} the way the web client surfaced backend errors.
func backendMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
