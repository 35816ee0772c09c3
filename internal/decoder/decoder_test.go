package decoder

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestDecodeKnownShapes(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  string
		shape Shape
	}{
		{
			name:  "success envelope",
			raw:   `{"success":true,"data":{"response":"Olá! Como posso ajudar?"}}`,
			want:  "Olá! Como posso ajudar?",
			shape: ShapeSuccessEnvelope,
		},
		{
			name:  "array output keeps markdown",
			raw:   `[{"output":"Resposta do agente com *markdown*"}]`,
			want:  "Resposta do agente com *markdown*",
			shape: ShapeArrayOutput,
		},
		{
			name:  "data response without success flag",
			raw:   `{"success":false,"data":{"response":"Dados"}}`,
			want:  "Dados",
			shape: ShapeDataResponse,
		},
		{
			name:  "direct output",
			raw:   `{"output":"Saída direta"}`,
			want:  "Saída direta",
			shape: ShapeDirectOutput,
		},
		{
			name:  "direct response",
			raw:   `{"response":"Resposta direta"}`,
			want:  "Resposta direta",
			shape: ShapeDirectResponse,
		},
		{
			name:  "direct message with markers",
			raw:   `{"message":"[AUDIO] Oi, obrigado pela mensagem [FIGURINHAS]"}`,
			want:  "Oi, obrigado pela mensagem",
			shape: ShapeDirectMessage,
		},
		{
			name:  "output beats response on the same object",
			raw:   `{"response":"segunda","output":"primeira"}`,
			want:  "primeira",
			shape: ShapeDirectOutput,
		},
		{
			name:  "data response beats output",
			raw:   `{"output":"fora","data":{"response":"dentro"}}`,
			want:  "dentro",
			shape: ShapeDataResponse,
		},
		{
			name:  "null field becomes empty reply",
			raw:   `{"output":null}`,
			want:  "Resposta vazia",
			shape: ShapeDirectOutput,
		},
		{
			name:  "numeric field becomes empty reply",
			raw:   `[{"output":42}]`,
			want:  "Resposta vazia",
			shape: ShapeArrayOutput,
		},
		{
			name:  "escaped newlines survive",
			raw:   `{"output":"linha 1\nlinha 2"}`,
			want:  "linha 1\nlinha 2",
			shape: ShapeDirectOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Decode(tt.raw)
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if res.Message != tt.want {
				t.Errorf("message = %q, want %q", res.Message, tt.want)
			}
			if res.Shape != tt.shape {
				t.Errorf("shape = %s, want %s", res.Shape, tt.shape)
			}
			if res.Stage != StageStrict {
				t.Errorf("stage = %s, want %s", res.Stage, StageStrict)
			}
		})
	}
}

func TestDecodeRawCarriageReturnInsideResponse(t *testing.T) {
	first := "Primeira parte do roteiro com texto suficiente para ultrapassar o limite minimo do scanner"
	second := "Segunda parte com os detalhes finais do video."
	raw := `{"response":"` + first + "\r" + second + `"}`

	res, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if res.Stage != StageSanitized {
		t.Fatalf("stage = %s, want %s", res.Stage, StageSanitized)
	}
	want := first + "\n" + second
	if res.Message != want {
		t.Fatalf("message = %q, want %q", res.Message, want)
	}
}

func TestDecodeControlCharactersInsideString(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"c0 byte becomes space", "{\"response\":\"Olá\x01mundo\"}", "Olá mundo"},
		{"raw tab kept", "{\"response\":\"coluna\tvalor\"}", "coluna\tvalor"},
		{"raw newline kept", "{\"output\":\"um\ndois\"}", "um\ndois"},
		{"pretty printed envelope", "{\n  \"output\": \"x\x02y\"\n}", "x y"},
		{"leading bom", "\uFEFF{\"output\":\"com bom\"}", "com bom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Decode(tt.raw)
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if res.Stage != StageSanitized {
				t.Errorf("stage = %s, want %s", res.Stage, StageSanitized)
			}
			if res.Message != tt.want {
				t.Errorf("message = %q, want %q", res.Message, tt.want)
			}
		})
	}
}

func TestDecodeStripsC1ControlsFromValidJSON(t *testing.T) {
	res, err := Decode("{\"message\":\"fim\u0085linha\"}")
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if res.Stage != StageStrict {
		t.Errorf("stage = %s, want %s", res.Stage, StageStrict)
	}
	if res.Message != "fimlinha" {
		t.Errorf("message = %q, want %q", res.Message, "fimlinha")
	}
}

func TestDecodeScannerPrefersResponse(t *testing.T) {
	a := strings.Repeat("saida ", 25)
	b := `Ele disse "oi" e depois ` + strings.Repeat("resposta ", 15)
	raw := `{"output": "` + a + `", "response": "` + b + `"}`

	res, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if res.Stage != StageScanner {
		t.Fatalf("stage = %s, want %s", res.Stage, StageScanner)
	}
	if res.Shape != ShapeDirectResponse {
		t.Errorf("shape = %s, want %s", res.Shape, ShapeDirectResponse)
	}
	if res.Message != strings.TrimSpace(b) {
		t.Errorf("message = %q, want %q", res.Message, strings.TrimSpace(b))
	}
}

func TestDecodeShortScannedValueFallsThrough(t *testing.T) {
	raw := `{"response": "He said "hi" ok then"}`

	_, err := Decode(raw)
	if !errors.Is(err, ErrUnrecoverable) {
		t.Fatalf("expected unrecoverable error, got %v", err)
	}

	d := New(Options{MinScanLength: 10})
	res, err := d.Decode(raw)
	if err != nil {
		t.Fatalf("Decode() with low threshold error: %v", err)
	}
	if res.Stage != StageScanner || res.Message != `He said "hi" ok then` {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDecodePlainProse(t *testing.T) {
	prose := "Aqui vai uma ideia de roteiro para o seu proximo video sobre culinaria regional, com foco em receitas simples e rapidas."
	if len(prose) < 100 {
		t.Fatalf("fixture too short: %d", len(prose))
	}

	res, err := Decode(prose)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if res.Stage != StageEmergency {
		t.Errorf("stage = %s, want %s", res.Stage, StageEmergency)
	}
	if res.Shape != ShapeArrayOutput {
		t.Errorf("shape = %s, want %s", res.Shape, ShapeArrayOutput)
	}
	if res.Message != prose {
		t.Errorf("message = %q, want %q", res.Message, prose)
	}
}

func TestDecodeTruncatedEnvelope(t *testing.T) {
	body := "Claro! Posso sugerir tres formatos de video curtos para a sua audiencia desta semana"
	raw := `[{"output":"` + body

	res, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if res.Stage != StageEmergency {
		t.Errorf("stage = %s, want %s", res.Stage, StageEmergency)
	}
	if res.Message != body {
		t.Errorf("message = %q, want %q", res.Message, body)
	}
}

func TestDecodeEmptyPayloads(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t\n", "{}", "[]", `{"foo":"bar"}`, `"texto"`} {
		_, err := Decode(raw)
		if err == nil {
			t.Fatalf("Decode(%q) expected error", raw)
		}
		var de *Error
		if !errors.As(err, &de) {
			t.Fatalf("Decode(%q) error type %T", raw, err)
		}
		if de.Kind != KindUnrecoverable {
			t.Errorf("Decode(%q) kind = %s, want %s", raw, de.Kind, KindUnrecoverable)
		}
	}
}

func TestDecodeEmptyReplyAfterCleaning(t *testing.T) {
	_, err := Decode(`{"output":"[AUDIO] [FIGURINHAS]"}`)
	if !errors.Is(err, ErrUnrecoverable) {
		t.Fatalf("expected unrecoverable error, got %v", err)
	}
}

func TestStageNames(t *testing.T) {
	got := New(DefaultOptions()).StageNames()
	want := []string{StageStrict, StageSanitized, StageScanner, StageEmergency}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("StageNames() = %v, want %v", got, want)
	}
}

func TestNewFillsDefaults(t *testing.T) {
	opts := New(Options{}).Options()
	def := DefaultOptions()
	if opts.MinScanLength != def.MinScanLength || opts.MinEmergencyLength != def.MinEmergencyLength || opts.MinRunLength != def.MinRunLength {
		t.Errorf("thresholds not defaulted: %+v", opts)
	}
	if opts.EmptyReply != def.EmptyReply {
		t.Errorf("EmptyReply = %q", opts.EmptyReply)
	}
	if len(opts.Markers) != 2 {
		t.Errorf("Markers = %v", opts.Markers)
	}
}

func TestTracerReceivesStageFailures(t *testing.T) {
	var mu sync.Mutex
	var events []string
	d := New(Options{Tracer: TracerFunc(func(event string, attrs ...any) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event)
	})})

	if _, err := d.Decode("texto solto que nao e json mas tem mais de cinquenta caracteres no total"); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}

	failed := 0
	for _, e := range events {
		if e == "stage failed" {
			failed++
		}
	}
	if failed != 3 {
		t.Fatalf("expected 3 stage failures before emergency, got %d (%v)", failed, events)
	}
	if events[len(events)-1] != "decode succeeded" {
		t.Fatalf("last event = %q", events[len(events)-1])
	}
}

func TestDecodeConcurrent(t *testing.T) {
	d := New(DefaultOptions())
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := d.Decode(`[{"output":"paralelo"}]`)
			if err != nil || res.Message != "paralelo" {
				t.Errorf("unexpected result %+v, %v", res, err)
			}
		}()
	}
	wg.Wait()
}

func TestErrorMessageAndIs(t *testing.T) {
	err := &Error{Kind: KindFieldNotFound, Stage: StageScanner}
	if err.Error() != "scanner: field not found" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrFieldNotFound) {
		t.Errorf("expected errors.Is match")
	}
	if errors.Is(err, ErrMalformedInput) {
		t.Errorf("unexpected errors.Is match")
	}
}
