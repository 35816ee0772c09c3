// Package bus carries chat turns between the CLI front end and the chat
// session: user turns travel inbound, reply and error bubbles outbound.
package bus

import (
	"context"
	"sync"
	"time"
)

// ChannelChat is the channel chat bubbles are published on.
const ChannelChat = "chat"

// Outbound bubble kinds.
const (
	KindReply = "reply"
	KindError = "error"
)

// InboundMessage is a user turn waiting to be sent to the webhook.
type InboundMessage struct {
	Channel     string    `json:"channel"`
	UserID      string    `json:"user_id"`
	TraceID     string    `json:"trace_id"`
	Content     string    `json:"content"`
	MessageType string    `json:"message_type"`
	Audio       []byte    `json:"-"`
	MimeType    string    `json:"mime_type,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// OutboundMessage is a reply or error bubble for display.
type OutboundMessage struct {
	Channel   string    `json:"channel"`
	TraceID   string    `json:"trace_id"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	Stage     string    `json:"stage,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// IsError reports whether the bubble carries an error.
func (m *OutboundMessage) IsError() bool { return m.Kind == KindError }

// MessageBus decouples the front end from the chat session.
type MessageBus struct {
	inbound  chan *InboundMessage
	outbound chan *OutboundMessage
	subs     map[string][]func(*OutboundMessage)
	mu       sync.RWMutex
}

// NewMessageBus creates a new message bus.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  make(chan *InboundMessage, 100),
		outbound: make(chan *OutboundMessage, 100),
		subs:     make(map[string][]func(*OutboundMessage)),
	}
}

// PublishInbound queues a user turn. It blocks while the queue is full
// unless ctx is cancelled first.
func (b *MessageBus) PublishInbound(ctx context.Context, msg *InboundMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.Channel == "" {
		msg.Channel = ChannelChat
	}
	select {
	case b.inbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConsumeInbound blocks until a message is available or context is cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (*InboundMessage, error) {
	select {
	case msg := <-b.inbound:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PublishOutbound queues a bubble for the subscribers of its channel.
func (b *MessageBus) PublishOutbound(msg *OutboundMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	b.outbound <- msg
}

// Subscribe registers a callback for outbound messages to a specific channel.
func (b *MessageBus) Subscribe(channel string, callback func(*OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[channel] = append(b.subs[channel], callback)
}

// DispatchOutbound delivers outbound messages to subscribers until ctx is
// cancelled. Run it in its own goroutine.
func (b *MessageBus) DispatchOutbound(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.outbound:
			b.mu.RLock()
			callbacks := b.subs[msg.Channel]
			b.mu.RUnlock()

			for _, cb := range callbacks {
				cb(msg)
			}
		}
	}
}

// InboundSize returns the number of pending inbound messages.
func (b *MessageBus) InboundSize() int {
	return len(b.inbound)
}

// OutboundSize returns the number of pending outbound messages.
func (b *MessageBus) OutboundSize() int {
	return len(b.outbound)
}
