// Package webhook posts chat turns to the assistant webhook and returns the
// raw reply body for decoding.
package webhook

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message types understood by the webhook.
const (
	MessageTypeText  = "text"
	MessageTypeAudio = "audio"
)

// maxErrorBody caps the body snippet carried by a StatusError.
const maxErrorBody = 512

// Request is a single user turn.
type Request struct {
	Message     string
	MessageType string
	Audio       []byte
	MimeType    string
	Timestamp   time.Time
}

// NewTextRequest builds a text turn stamped with the current time.
func NewTextRequest(text string) *Request {
	return &Request{Message: text, MessageType: MessageTypeText, Timestamp: time.Now()}
}

// NewAudioRequest builds an audio turn. The audio bytes are sent as-is,
// base64 encoded; no transcoding happens here.
func NewAudioRequest(text string, audio []byte, mimeType string) *Request {
	return &Request{
		Message:     text,
		MessageType: MessageTypeAudio,
		Audio:       audio,
		MimeType:    mimeType,
		Timestamp:   time.Now(),
	}
}

// Reply is the undecoded webhook response.
type Reply struct {
	Raw        string
	StatusCode int
	Elapsed    time.Duration
}

// StatusError reports a non-2xx webhook response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("webhook error (status %d): %s", e.StatusCode, e.Body)
}

// ErrNoURL is returned by Send when the client has no webhook URL.
var ErrNoURL = errors.New("webhook url not configured")

type payload struct {
	Message     string `json:"message"`
	Timestamp   string `json:"timestamp"`
	UserID      string `json:"user_id"`
	MessageType string `json:"message_type"`
	Audio       string `json:"audio,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
}

// Client posts turns to a single webhook URL.
type Client struct {
	url        string
	userID     string
	httpClient *http.Client
}

// NewClient creates a webhook client. A non-positive timeout means 60s.
func NewClient(url, userID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		url:    strings.TrimSpace(url),
		userID: userID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// URL returns the configured webhook URL.
func (c *Client) URL() string { return c.url }

// UserID returns the identifier sent with every turn.
func (c *Client) UserID() string { return c.userID }

// Send posts req and returns the raw reply body.
func (c *Client) Send(ctx context.Context, req *Request) (*Reply, error) {
	if c.url == "" {
		return nil, ErrNoURL
	}
	if req == nil {
		return nil, errors.New("nil request")
	}

	body, err := json.Marshal(c.buildPayload(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), maxErrorBody)}
	}

	return &Reply{
		Raw:        string(respBody),
		StatusCode: resp.StatusCode,
		Elapsed:    time.Since(start),
	}, nil
}

func (c *Client) buildPayload(req *Request) payload {
	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	msgType := req.MessageType
	if msgType == "" {
		msgType = MessageTypeText
	}
	p := payload{
		Message:     req.Message,
		Timestamp:   ts.UTC().Format(time.RFC3339),
		UserID:      c.userID,
		MessageType: msgType,
	}
	if len(req.Audio) > 0 {
		p.Audio = base64.StdEncoding.EncodeToString(req.Audio)
		p.MimeType = req.MimeType
	}
	return p
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	// Back off to a rune boundary.
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
