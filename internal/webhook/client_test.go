package webhook

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_SendText(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`[{"output":"Oi!"}]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "creator-7", 5*time.Second)
	req := NewTextRequest("Como começo meu vídeo?")
	req.Timestamp = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	reply, err := c.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if reply.Raw != `[{"output":"Oi!"}]` {
		t.Errorf("unexpected raw reply %q", reply.Raw)
	}
	if reply.StatusCode != http.StatusOK {
		t.Errorf("unexpected status %d", reply.StatusCode)
	}

	if got["message"] != "Como começo meu vídeo?" {
		t.Errorf("message = %v", got["message"])
	}
	if got["user_id"] != "creator-7" {
		t.Errorf("user_id = %v", got["user_id"])
	}
	if got["message_type"] != "text" {
		t.Errorf("message_type = %v", got["message_type"])
	}
	if got["timestamp"] != "2025-03-01T12:00:00Z" {
		t.Errorf("timestamp = %v", got["timestamp"])
	}
	if _, ok := got["audio"]; ok {
		t.Errorf("text turn should not carry audio")
	}
}

func TestClient_SendAudio(t *testing.T) {
	var got payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"response":"ok"}`))
	}))
	defer server.Close()

	audio := []byte{0x1a, 0x45, 0xdf, 0xa3, 0x00}
	c := NewClient(server.URL, "u", 0)
	if _, err := c.Send(context.Background(), NewAudioRequest("[AUDIO]", audio, "audio/webm")); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if got.MessageType != "audio" {
		t.Errorf("message_type = %q", got.MessageType)
	}
	decoded, err := base64.StdEncoding.DecodeString(got.Audio)
	if err != nil {
		t.Fatalf("audio not base64: %v", err)
	}
	if string(decoded) != string(audio) {
		t.Errorf("audio bytes changed in transit")
	}
	if got.MimeType != "audio/webm" {
		t.Errorf("mime_type = %q", got.MimeType)
	}
}

func TestClient_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(strings.Repeat("x", 2000)))
	}))
	defer server.Close()

	c := NewClient(server.URL, "u", time.Second)
	_, err := c.Send(context.Background(), NewTextRequest("oi"))
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d", se.StatusCode)
	}
	if len(se.Body) > maxErrorBody+3 {
		t.Errorf("body not truncated: %d bytes", len(se.Body))
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewClient(server.URL, "u", 10*time.Second)
	if _, err := c.Send(ctx, NewTextRequest("oi")); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}

func TestClient_NoURL(t *testing.T) {
	c := NewClient("  ", "u", time.Second)
	if _, err := c.Send(context.Background(), NewTextRequest("oi")); !errors.Is(err, ErrNoURL) {
		t.Fatalf("expected ErrNoURL, got %v", err)
	}
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	s := strings.Repeat("é", 10) // 20 bytes
	got := truncate(s, 5)
	if got != "éé..." {
		t.Fatalf("truncate = %q", got)
	}
}
