package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/KafClaw/creatorhook/internal/config"
	"github.com/KafClaw/creatorhook/internal/decoder"
	"github.com/KafClaw/creatorhook/internal/secrets"
	"github.com/KafClaw/creatorhook/internal/timeline"
	"github.com/KafClaw/creatorhook/internal/webhook"
)

// newDecoder maps the decoder config onto decoder options. Stage tracing is
// on when the config asks for it or the command runs verbose.
func newDecoder(cfg *config.Config) *decoder.Decoder {
	opts := decoder.DefaultOptions()
	if cfg.Decoder.MinScanLength > 0 {
		opts.MinScanLength = cfg.Decoder.MinScanLength
	}
	if cfg.Decoder.MinEmergencyLength > 0 {
		opts.MinEmergencyLength = cfg.Decoder.MinEmergencyLength
	}
	if cfg.Decoder.MinRunLength > 0 {
		opts.MinRunLength = cfg.Decoder.MinRunLength
	}
	if cfg.Decoder.EmptyReply != "" {
		opts.EmptyReply = cfg.Decoder.EmptyReply
	}
	if verbose || cfg.Decoder.Trace {
		tracer := decoder.NewSlogTracer(slog.Default())
		if !verbose {
			tracer.Level = slog.LevelInfo
		}
		opts.Tracer = tracer
	}
	return decoder.New(opts)
}

func openTimeline(cfg *config.Config) (*timeline.TimelineService, error) {
	dbPath := cfg.Paths.TimelineDB
	if err := config.EnsureDir(filepath.Dir(dbPath)); err != nil {
		return nil, fmt.Errorf("create timeline dir: %w", err)
	}
	svc, err := timeline.NewTimelineService(dbPath)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// newWebhookClient resolves a keyring-backed webhook URL before building the
// client.
func newWebhookClient(cfg *config.Config) (*webhook.Client, error) {
	url, err := secrets.Resolve(cfg.Webhook.URL)
	if err != nil {
		return nil, fmt.Errorf("resolve webhook url: %w", err)
	}
	return webhook.NewClient(url, cfg.Webhook.UserID, cfg.Webhook.Timeout), nil
}
