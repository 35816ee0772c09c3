// Package config provides configuration types and loading for creatorhook.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Paths, Webhook, Decoder, Chat, Relay.
type Config struct {
	Paths   PathsConfig   `json:"paths"`
	Webhook WebhookConfig `json:"webhook"`
	Decoder DecoderConfig `json:"decoder"`
	Chat    ChatConfig    `json:"chat"`
	Relay   RelayConfig   `json:"relay"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	Workspace  string `json:"workspace" envconfig:"WORKSPACE"`
	TimelineDB string `json:"timelineDb" envconfig:"TIMELINE_DB"`
}

// ---------------------------------------------------------------------------
// Webhook – the upstream chat assistant
// ---------------------------------------------------------------------------

// WebhookConfig points at the chat webhook and identifies the caller.
type WebhookConfig struct {
	URL     string        `json:"url" envconfig:"URL"`
	UserID  string        `json:"userId" envconfig:"USER_ID"`
	Timeout time.Duration `json:"timeout" envconfig:"TIMEOUT"`
}

// ---------------------------------------------------------------------------
// Decoder – response decoder thresholds
// ---------------------------------------------------------------------------

// DecoderConfig tunes the response decoder. The lengths are rune counts.
type DecoderConfig struct {
	MinScanLength      int    `json:"minScanLength" envconfig:"MIN_SCAN_LENGTH"`
	MinEmergencyLength int    `json:"minEmergencyLength" envconfig:"MIN_EMERGENCY_LENGTH"`
	MinRunLength       int    `json:"minRunLength" envconfig:"MIN_RUN_LENGTH"`
	EmptyReply         string `json:"emptyReply" envconfig:"EMPTY_REPLY"`
	Trace              bool   `json:"trace" envconfig:"TRACE"`
}

// ---------------------------------------------------------------------------
// Chat – session behaviour
// ---------------------------------------------------------------------------

// ChatConfig contains chat session settings.
type ChatConfig struct {
	Cooldown    time.Duration `json:"cooldown" envconfig:"COOLDOWN"`
	ErrorPrefix string        `json:"errorPrefix" envconfig:"ERROR_PREFIX"`
}

// ---------------------------------------------------------------------------
// Relay – Kafka mirror of decoded replies
// ---------------------------------------------------------------------------

// RelayConfig contains settings for the Kafka reply relay.
type RelayConfig struct {
	Enabled bool   `json:"enabled" envconfig:"ENABLED"`
	Brokers string `json:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic   string `json:"topic" envconfig:"TOPIC"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Workspace:  "~/.creatorhook",
			TimelineDB: "~/.creatorhook/timeline.db",
		},
		Webhook: WebhookConfig{
			Timeout: 60 * time.Second,
		},
		Decoder: DecoderConfig{
			MinScanLength:      100,
			MinEmergencyLength: 50,
			MinRunLength:       100,
			EmptyReply:         "Resposta vazia",
		},
		Chat: ChatConfig{
			Cooldown:    3 * time.Second,
			ErrorPrefix: "❌ Erro: ",
		},
		Relay: RelayConfig{
			Enabled: false,
			Brokers: "localhost:9092",
			Topic:   "creatorhook.replies",
		},
	}
}
