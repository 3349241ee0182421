package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors.
var (
	// ErrUnavailable is returned when the endpoint cannot be reached or
	// answers with a non-2xx status.
	ErrUnavailable = errors.New("telemetry: endpoint unavailable")

	// ErrBadResponse is returned when a response body cannot be decoded.
	ErrBadResponse = errors.New("telemetry: bad response")

	// ErrNavigateFailed is returned when the app rejects a navigation.
	ErrNavigateFailed = errors.New("telemetry: navigation failed")
)

const (
	defaultTimeout = 2 * time.Second
	maxBodySize    = 1 << 20
)

// EventID is an event identifier; apps send either strings or numbers.
type EventID string

// UnmarshalJSON accepts "e1" and 17.
func (id *EventID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = EventID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = EventID(n.String())
	return nil
}

// Event is one entry of the app's event ring buffer.
type Event struct {
	ID        EventID `json:"id"`
	Timestamp any     `json:"timestamp"`
	Action    string  `json:"action"`
	Target    string  `json:"target"`
	Success   bool    `json:"success"`
	Detail    string  `json:"detail,omitempty"`
}

// Target is a registry entry: either a literal point or a navigation section.
type Target struct {
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
	Type    string   `json:"type,omitempty"`
	Section string   `json:"section,omitempty"`
}

// IsPoint reports whether the target is a literal screen point.
func (t Target) IsPoint() bool {
	return t.X != nil && t.Y != nil
}

// IsNavigate reports whether the target is an indirect navigation.
func (t Target) IsNavigate() bool {
	return t.Type == "navigate" && t.Section != ""
}

// Targets maps target keys to entries.
type Targets map[string]Target

// Client talks to one application's telemetry endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for baseURL (e.g. "http://127.0.0.1:7852").
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Events returns the recent events, oldest first as the app reports them.
func (c *Client) Events(ctx context.Context) ([]Event, error) {
	var body struct {
		Events []Event `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, "/vif/events", nil, &body); err != nil {
		return nil, err
	}
	return body.Events, nil
}

// ResetEvents clears the app's event ring buffer.
func (c *Client) ResetEvents(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/vif/events", nil, nil)
}

// State returns the app's current state document.
func (c *Client) State(ctx context.Context) (map[string]any, error) {
	var state map[string]any
	if err := c.do(ctx, http.MethodGet, "/vif/state", nil, &state); err != nil {
		return nil, err
	}
	return state, nil
}

// Navigate asks the app to show section.
func (c *Client) Navigate(ctx context.Context, section string) error {
	var reply struct {
		OK    *bool  `json:"ok"`
		Error string `json:"error"`
	}
	if err := c.do(ctx, http.MethodPost, "/vif/navigate", map[string]string{"section": section}, &reply); err != nil {
		return err
	}
	if reply.OK != nil && !*reply.OK {
		return fmt.Errorf("%w: %s: %s", ErrNavigateFailed, section, reply.Error)
	}
	return nil
}

// Targets fetches the target registry. The body may be {"targets": {...}}
// or the map itself.
func (c *Client) Targets(ctx context.Context) (Targets, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/vif/targets", nil, &raw); err != nil {
		return nil, err
	}

	var wrapped struct {
		Targets Targets `json:"targets"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Targets != nil {
		return wrapped.Targets, nil
	}

	var direct Targets
	if err := json.Unmarshal(raw, &direct); err != nil {
		return nil, fmt.Errorf("%w: targets: %w", ErrBadResponse, err)
	}
	return direct, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s: status %s", ErrUnavailable, method, path, strconv.Itoa(resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: reading %s: %w", ErrBadResponse, path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBadResponse, path, err)
	}
	return nil
}
