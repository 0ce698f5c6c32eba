// ABOUTME: HTTP client for the task server: task creation, status polling, history, and the live SSE stream.
// ABOUTME: The server is an external collaborator; wire shapes are mirrored here rather than shared.

package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/skytodmoon/OpenManus/sse"
)

// TaskStatus is the server-reported lifecycle state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Terminal reports whether the status admits no further events. Some
// backends report failure as "failed: <reason>", so the check is a prefix
// match.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || strings.HasPrefix(string(s), string(TaskFailed))
}

// StepRecord is a persisted step as returned by GET /tasks/{id}. Timestamp
// may be empty for older records; ordering then degrades to array order.
type StepRecord struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Result    string `json:"result,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Text returns the display content of the record: content when persisted
// under that key, result otherwise (older servers used "result").
func (r StepRecord) Text() string {
	if r.Content != "" {
		return r.Content
	}
	return r.Result
}

// TaskSnapshot is a full task record from GET /tasks/{id}.
type TaskSnapshot struct {
	ID        string       `json:"id"`
	Prompt    string       `json:"prompt"`
	Status    TaskStatus   `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	Error     string       `json:"error,omitempty"`
	Steps     []StepRecord `json:"steps"`
}

// TaskSummary is a list entry from GET /tasks.
type TaskSummary struct {
	ID        string     `json:"id"`
	Prompt    string     `json:"prompt"`
	Status    TaskStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// Client talks to the task server.
type Client struct {
	base string
	http *http.Client
	log  logrus.FieldLogger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client. The default has no
// timeout because the SSE stream is long-lived; per-call deadlines come
// from the context.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithClientLogger overrides the default standard logger.
func WithClientLogger(l logrus.FieldLogger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient creates a client for the server at baseURL (e.g.
// "http://127.0.0.1:5172").
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{},
		log:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateTask submits a prompt and returns the new task's ID.
func (c *Client) CreateTask(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return "", fmt.Errorf("encode prompt: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/tasks", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", c.decodeError(resp)
	}

	var out struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	if out.TaskID == "" {
		return "", fmt.Errorf("server returned no task_id")
	}
	return out.TaskID, nil
}

// GetTask fetches the current snapshot of one task.
func (c *Client) GetTask(ctx context.Context, id string) (*TaskSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/tasks/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeError(resp)
	}

	var snap TaskSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", id, err)
	}
	return &snap, nil
}

// ListTasks fetches all known tasks in the server's order.
func (c *Client) ListTasks(ctx context.Context) ([]TaskSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/tasks", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeError(resp)
	}

	var out []TaskSummary
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode task list: %w", err)
	}
	return out, nil
}

// DownloadURL returns the absolute URL for a saved artifact.
func (c *Client) DownloadURL(filePath string) string {
	return c.base + "/download?file_path=" + url.QueryEscape(filePath)
}

// EventStream is one live SSE subscription. Events arrive on C; when C
// closes, Err reports why (nil only after a clean server-side end of
// stream).
type EventStream struct {
	C <-chan sse.Event

	body io.ReadCloser
	done chan struct{}
	err  error
}

// Err returns the transport error that ended the stream, if any. Valid
// after C is closed.
func (s *EventStream) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close tears down the connection. Safe to call more than once.
func (s *EventStream) Close() {
	_ = s.body.Close()
}

// Events opens the live event stream for a task. The returned stream stays
// open until the server ends it, the context is cancelled, or Close is
// called.
func (c *Client) Events(ctx context.Context, id string) (*EventStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/tasks/"+url.PathEscape(id)+"/events", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open event stream for %s: %w", id, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.decodeError(resp)
	}

	ch := make(chan sse.Event, 16)
	stream := &EventStream{
		C:    ch,
		body: resp.Body,
		done: make(chan struct{}),
	}

	go func() {
		defer close(ch)
		defer close(stream.done)
		defer resp.Body.Close()

		parser := sse.NewParser(resp.Body)
		for {
			evt, err := parser.Next()
			if err != nil {
				if err != io.EOF {
					stream.err = err
				}
				return
			}
			select {
			case ch <- evt:
			case <-ctx.Done():
				stream.err = ctx.Err()
				return
			}
		}
	}()

	return stream, nil
}

// decodeError turns a non-2xx response into an error, preferring the
// server's {detail} body, then {message}, then the HTTP status.
func (c *Client) decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Detail != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, payload.Detail)
		}
		if payload.Message != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, payload.Message)
		}
	}
	return fmt.Errorf("server error: %s", resp.Status)
}
