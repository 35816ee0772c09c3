// Package chat runs chat turns against the assistant webhook: it dispatches
// the user's message, decodes the reply, records both turns and publishes a
// reply or error bubble.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KafClaw/creatorhook/internal/bus"
	"github.com/KafClaw/creatorhook/internal/decoder"
	"github.com/KafClaw/creatorhook/internal/relay"
	"github.com/KafClaw/creatorhook/internal/timeline"
	"github.com/KafClaw/creatorhook/internal/webhook"
)

// Status is the session's visible state.
type Status string

const (
	StatusOnline     Status = "online"
	StatusProcessing Status = "processing"
	StatusError      Status = "error"
)

// StatusSettingKey is the timeline setting the last status is persisted under.
const StatusSettingKey = "chat_status"

// AudioLabel is the message text sent alongside audio turns.
const AudioLabel = "[AUDIO]"

var (
	// ErrBusy is returned when a turn is sent while another is processing.
	ErrBusy = errors.New("chat session busy")
	// ErrEmptyMessage is returned for blank text or empty audio.
	ErrEmptyMessage = errors.New("empty message")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("chat session closed")
)

// Dispatcher delivers a turn to the webhook.
type Dispatcher interface {
	Send(ctx context.Context, req *webhook.Request) (*webhook.Reply, error)
}

// Store records turns.
type Store interface {
	AddTurn(turn *timeline.Turn) error
	SetSetting(key, value string) error
}

// Config wires a Session. Dispatcher is required; every other dependency is
// optional.
type Config struct {
	Dispatcher  Dispatcher
	Decoder     *decoder.Decoder
	Store       Store
	Publisher   relay.Publisher
	Bus         *bus.MessageBus
	UserID      string
	Cooldown    time.Duration
	ErrorPrefix string
}

// Outcome describes a successful turn.
type Outcome struct {
	TraceID string        `json:"trace_id"`
	Reply   string        `json:"reply"`
	Stage   string        `json:"stage"`
	Shape   string        `json:"shape"`
	Raw     string        `json:"raw"`
	Elapsed time.Duration `json:"elapsed"`
}

// Session serialises chat turns and tracks the online/processing/error
// status shown to the user.
type Session struct {
	cfg Config

	mu     sync.Mutex
	status Status
	timer  *time.Timer
	closed bool
}

// NewSession validates cfg and returns an online session.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("chat: dispatcher is required")
	}
	if cfg.Decoder == nil {
		cfg.Decoder = decoder.New(decoder.DefaultOptions())
	}
	if cfg.Publisher == nil {
		cfg.Publisher = relay.NopPublisher{}
	}
	if cfg.ErrorPrefix == "" {
		cfg.ErrorPrefix = "❌ Erro: "
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	s := &Session{cfg: cfg, status: StatusOnline}
	s.persistStatus(StatusOnline)
	return s, nil
}

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SendText sends a text turn.
func (s *Session) SendText(ctx context.Context, text string) (*Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	return s.send(ctx, webhook.NewTextRequest(text))
}

// SendAudio sends an audio turn. The bytes are forwarded untouched.
func (s *Session) SendAudio(ctx context.Context, audio []byte, mimeType string) (*Outcome, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyMessage
	}
	return s.send(ctx, webhook.NewAudioRequest(AudioLabel, audio, mimeType))
}

// Submit queues a text turn on the bus for Run.
func (s *Session) Submit(ctx context.Context, text string) error {
	if s.cfg.Bus == nil {
		return errors.New("chat: no message bus configured")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	return s.cfg.Bus.PublishInbound(ctx, &bus.InboundMessage{
		Channel:     bus.ChannelChat,
		UserID:      s.cfg.UserID,
		Content:     text,
		MessageType: webhook.MessageTypeText,
	})
}

// Run processes inbound bus messages one at a time until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	if s.cfg.Bus == nil {
		return errors.New("chat: no message bus configured")
	}
	for {
		msg, err := s.cfg.Bus.ConsumeInbound(ctx)
		if err != nil {
			return err
		}
		var req *webhook.Request
		if msg.MessageType == webhook.MessageTypeAudio {
			req = webhook.NewAudioRequest(AudioLabel, msg.Audio, msg.MimeType)
		} else {
			req = webhook.NewTextRequest(msg.Content)
		}
		if _, err := s.send(ctx, req); err != nil {
			slog.Debug("Chat: inbound turn failed", "error", err)
		}
	}
}

// Close stops the cooldown timer and rejects further turns.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return nil
}

func (s *Session) send(ctx context.Context, req *webhook.Request) (*Outcome, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}

	traceID := uuid.NewString()
	s.record(&timeline.Turn{
		TraceID:     traceID,
		UserID:      s.cfg.UserID,
		Role:        timeline.RoleUser,
		MessageType: req.MessageType,
		Content:     req.Message,
		CreatedAt:   req.Timestamp,
	})

	slog.Info("Chat: dispatching turn", "trace_id", traceID, "type", req.MessageType)
	reply, err := s.cfg.Dispatcher.Send(ctx, req)
	if err != nil {
		return nil, s.fail(ctx, traceID, req, "", err)
	}

	res, err := s.cfg.Decoder.Decode(reply.Raw)
	if err != nil {
		return nil, s.fail(ctx, traceID, req, reply.Raw, err)
	}

	out := &Outcome{
		TraceID: traceID,
		Reply:   res.Message,
		Stage:   res.Stage,
		Shape:   res.Shape.String(),
		Raw:     reply.Raw,
		Elapsed: reply.Elapsed,
	}
	s.record(&timeline.Turn{
		TraceID:     traceID,
		UserID:      s.cfg.UserID,
		Role:        timeline.RoleAssistant,
		MessageType: webhook.MessageTypeText,
		Content:     out.Reply,
		RawPayload:  out.Raw,
		DecodeStage: out.Stage,
		Shape:       out.Shape,
		ElapsedMs:   out.Elapsed.Milliseconds(),
	})
	s.publish(&bus.OutboundMessage{
		Channel: bus.ChannelChat,
		TraceID: traceID,
		Kind:    bus.KindReply,
		Content: out.Reply,
		Stage:   out.Stage,
	})
	s.mirror(ctx, traceID, timeline.RoleAssistant, out.Reply, out.Stage)
	slog.Info("Chat: reply decoded", "trace_id", traceID, "stage", out.Stage, "shape", out.Shape, "elapsed", out.Elapsed)

	s.finish(nil)
	return out, nil
}

// fail records and publishes the error bubble, then moves the session into
// the error status.
func (s *Session) fail(ctx context.Context, traceID string, req *webhook.Request, raw string, cause error) error {
	bubble := s.cfg.ErrorPrefix + userMessage(cause)
	slog.Warn("Chat: turn failed", "trace_id", traceID, "error", cause)

	s.record(&timeline.Turn{
		TraceID:     traceID,
		UserID:      s.cfg.UserID,
		Role:        timeline.RoleError,
		MessageType: req.MessageType,
		Content:     bubble,
		RawPayload:  raw,
	})
	s.publish(&bus.OutboundMessage{
		Channel: bus.ChannelChat,
		TraceID: traceID,
		Kind:    bus.KindError,
		Content: bubble,
	})
	s.mirror(ctx, traceID, timeline.RoleError, bubble, "")

	s.finish(cause)
	return fmt.Errorf("chat turn %s: %w", traceID, cause)
}

func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.status == StatusProcessing {
		return ErrBusy
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.setStatusLocked(StatusProcessing)
	return nil
}

// finish leaves the processing status. After a failure the session shows
// the error status for the cooldown and then returns online.
func (s *Session) finish(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cause == nil || s.cfg.Cooldown == 0 || s.closed {
		s.setStatusLocked(StatusOnline)
		return
	}
	s.setStatusLocked(StatusError)
	var timer *time.Timer
	timer = time.AfterFunc(s.cfg.Cooldown, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.timer != timer {
			return
		}
		s.timer = nil
		if s.status == StatusError {
			s.setStatusLocked(StatusOnline)
		}
	})
	s.timer = timer
}

func (s *Session) setStatusLocked(st Status) {
	if s.status == st {
		return
	}
	s.status = st
	s.persistStatus(st)
}

func (s *Session) persistStatus(st Status) {
	if s.cfg.Store == nil {
		return
	}
	if err := s.cfg.Store.SetSetting(StatusSettingKey, string(st)); err != nil {
		slog.Warn("Chat: persist status failed", "status", st, "error", err)
	}
}

func (s *Session) record(turn *timeline.Turn) {
	if s.cfg.Store == nil {
		return
	}
	if err := s.cfg.Store.AddTurn(turn); err != nil {
		slog.Warn("Chat: record turn failed", "trace_id", turn.TraceID, "role", turn.Role, "error", err)
	}
}

func (s *Session) publish(msg *bus.OutboundMessage) {
	if s.cfg.Bus == nil {
		return
	}
	s.cfg.Bus.PublishOutbound(msg)
}

func (s *Session) mirror(ctx context.Context, traceID, role, content, stage string) {
	err := s.cfg.Publisher.Publish(ctx, &relay.Record{
		TraceID: traceID,
		UserID:  s.cfg.UserID,
		Role:    role,
		Content: content,
		Stage:   stage,
	})
	if err != nil {
		slog.Warn("Chat: relay publish failed", "trace_id", traceID, "error", err)
	}
}

// userMessage turns a failure into the text shown in the error bubble.
func userMessage(err error) string {
	var statusErr *webhook.StatusError
	var netErr net.Error
	switch {
	case errors.Is(err, decoder.ErrUnrecoverable):
		return "não foi possível ler a resposta do assistente"
	case errors.As(err, &statusErr):
		return fmt.Sprintf("o webhook respondeu com status %d", statusErr.StatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		return "tempo de resposta esgotado"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "tempo de resposta esgotado"
	case errors.Is(err, context.Canceled):
		return "envio cancelado"
	case errors.Is(err, webhook.ErrNoURL):
		return "webhook não configurado"
	default:
		return err.Error()
	}
}
