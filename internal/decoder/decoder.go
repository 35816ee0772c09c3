// Package decoder extracts the human-readable reply from chat webhook payloads.
//
// Upstream webhooks answer with anything from clean JSON envelopes to
// half-escaped text with raw control bytes. A Decoder runs an ordered list of
// stages (strict parse, sanitized parse, field scan, emergency extraction);
// the first stage that yields a non-empty reply wins and its value goes
// through the shape resolver and post-processor.
package decoder

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// Stage names, in cascade order.
const (
	StageStrict    = "strict"
	StageSanitized = "sanitized"
	StageScanner   = "scanner"
	StageEmergency = "emergency"
)

// Options tunes the decoder thresholds.
type Options struct {
	// MinScanLength is the rune count a scanned field value must exceed.
	MinScanLength int
	// MinEmergencyLength is the rune count a stripped emergency candidate must exceed.
	MinEmergencyLength int
	// MinRunLength is the minimum rune count of a plain-text run in the last-resort sweep.
	MinRunLength int
	// EmptyReply replaces reply fields that are null or not strings.
	EmptyReply string
	// Markers are the field names the scanner looks for, in precedence order.
	Markers []string
	// Tracer receives diagnostic events. Nil means no tracing.
	Tracer Tracer
}

// DefaultOptions returns the thresholds observed to work against the
// production webhook.
func DefaultOptions() Options {
	return Options{
		MinScanLength:      100,
		MinEmergencyLength: 50,
		MinRunLength:       100,
		EmptyReply:         "Resposta vazia",
		Markers:            []string{"response", "output"},
	}
}

// Result is a successfully decoded reply.
type Result struct {
	Message string `json:"message"`
	Stage   string `json:"stage"`
	Shape   Shape  `json:"shape"`
}

// stage turns a raw payload into a candidate tree for the resolver.
type stage struct {
	name string
	run  func(raw string) (gjson.Result, error)
}

// Decoder is immutable after construction and safe for concurrent use.
type Decoder struct {
	opts   Options
	tracer Tracer
	stages []stage
}

// New builds a Decoder. Zero-valued option fields fall back to defaults.
func New(opts Options) *Decoder {
	def := DefaultOptions()
	if opts.MinScanLength <= 0 {
		opts.MinScanLength = def.MinScanLength
	}
	if opts.MinEmergencyLength <= 0 {
		opts.MinEmergencyLength = def.MinEmergencyLength
	}
	if opts.MinRunLength <= 0 {
		opts.MinRunLength = def.MinRunLength
	}
	if opts.EmptyReply == "" {
		opts.EmptyReply = def.EmptyReply
	}
	if len(opts.Markers) == 0 {
		opts.Markers = def.Markers
	}
	d := &Decoder{opts: opts, tracer: opts.Tracer}
	if d.tracer == nil {
		d.tracer = NopTracer{}
	}
	d.stages = []stage{
		{name: StageStrict, run: decodeStrict},
		{name: StageSanitized, run: decodeSanitized},
		{name: StageScanner, run: d.scanStage},
		{name: StageEmergency, run: d.emergencyStage},
	}
	return d
}

var defaultDecoder = New(DefaultOptions())

// Decode runs raw through a decoder with default options.
func Decode(raw string) (*Result, error) {
	return defaultDecoder.Decode(raw)
}

// Options returns the effective options.
func (d *Decoder) Options() Options {
	return d.opts
}

// StageNames returns the cascade order.
func (d *Decoder) StageNames() []string {
	names := make([]string, len(d.stages))
	for i, s := range d.stages {
		names[i] = s.name
	}
	return names
}

// Decode extracts the reply from raw. Stage failures are recovered by moving
// on to the next stage; only exhaustion of every stage is reported, as an
// *Error of kind KindUnrecoverable.
func (d *Decoder) Decode(raw string) (*Result, error) {
	d.tracer.Trace("decode started", "bytes", len(raw))

	var failures []error
	for _, s := range d.stages {
		tree, err := s.run(raw)
		if err == nil {
			var res *Result
			res, err = d.finish(s.name, tree)
			if err == nil {
				d.tracer.Trace("decode succeeded", "stage", s.name, "shape", res.Shape.String(), "chars", len(res.Message))
				return res, nil
			}
		}
		d.tracer.Trace("stage failed", "stage", s.name, "error", err)
		failures = append(failures, err)
	}

	return nil, &Error{
		Kind:  KindUnrecoverable,
		Stage: StageEmergency,
		Err:   errors.Join(failures...),
	}
}

// finish resolves the reply field of tree and post-processes it.
func (d *Decoder) finish(stageName string, tree gjson.Result) (*Result, error) {
	value, shape, err := resolve(tree)
	if err != nil {
		return nil, stageError(err, stageName)
	}
	msg := postProcess(value, d.opts.EmptyReply)
	if strings.TrimSpace(msg) == "" {
		return nil, &Error{Kind: KindFieldNotFound, Stage: stageName, Err: errors.New("reply is empty after post-processing")}
	}
	return &Result{Message: msg, Stage: stageName, Shape: shape}, nil
}

func (d *Decoder) scanStage(raw string) (gjson.Result, error) {
	text, marker, ok := scanField(raw, d.opts.Markers, d.opts.MinScanLength)
	if !ok {
		return gjson.Result{}, &Error{Kind: KindFieldNotFound, Stage: StageScanner}
	}
	d.tracer.Trace("scanner matched", "marker", marker, "chars", len(text))
	return wrapObject(marker, text), nil
}

func (d *Decoder) emergencyStage(raw string) (gjson.Result, error) {
	text, ok := extractEmergency(raw, d.opts.MinEmergencyLength, d.opts.MinRunLength)
	if !ok {
		return gjson.Result{}, &Error{Kind: KindFieldNotFound, Stage: StageEmergency}
	}
	d.tracer.Trace("emergency extraction recovered text", "chars", len(text))
	return wrapArrayOutput(text), nil
}

// stageError tags err with the stage it came from.
func stageError(err error, stageName string) error {
	var de *Error
	if errors.As(err, &de) {
		if de.Stage == "" {
			de.Stage = stageName
		}
		return de
	}
	return &Error{Kind: KindMalformedInput, Stage: stageName, Err: err}
}
