package decoder

import (
	"context"
	"log/slog"
)

// Tracer receives decoder diagnostics. Implementations must be safe for
// concurrent use if the Decoder is shared.
type Tracer interface {
	Trace(event string, attrs ...any)
}

// NopTracer discards every event.
type NopTracer struct{}

func (NopTracer) Trace(string, ...any) {}

// SlogTracer forwards events to a slog.Logger at a fixed level.
type SlogTracer struct {
	Logger *slog.Logger
	Level  slog.Level
}

// NewSlogTracer traces at debug level. A nil logger uses slog.Default().
func NewSlogTracer(logger *slog.Logger) *SlogTracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogTracer{Logger: logger, Level: slog.LevelDebug}
}

func (t *SlogTracer) Trace(event string, attrs ...any) {
	t.Logger.Log(context.Background(), t.Level, "Decoder: "+event, attrs...)
}

// TracerFunc adapts a plain function to Tracer.
type TracerFunc func(event string, attrs ...any)

func (f TracerFunc) Trace(event string, attrs ...any) { f(event, attrs...) }
