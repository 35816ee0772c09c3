package decoder

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Shape identifies which webhook envelope carried the reply.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeArrayOutput: [{"output": "..."}]
	ShapeArrayOutput
	// ShapeSuccessEnvelope: {"success": true, "data": {"response": "..."}}
	ShapeSuccessEnvelope
	// ShapeDataResponse: {"data": {"response": "..."}}
	ShapeDataResponse
	// ShapeDirectOutput: {"output": "..."}
	ShapeDirectOutput
	// ShapeDirectResponse: {"response": "..."}
	ShapeDirectResponse
	// ShapeDirectMessage: {"message": "..."}
	ShapeDirectMessage
)

var shapeNames = map[Shape]string{
	ShapeUnknown:         "unknown",
	ShapeArrayOutput:     "array_output",
	ShapeSuccessEnvelope: "success_envelope",
	ShapeDataResponse:    "data_response",
	ShapeDirectOutput:    "direct_output",
	ShapeDirectResponse:  "direct_response",
	ShapeDirectMessage:   "direct_message",
}

func (s Shape) String() string {
	if name, ok := shapeNames[s]; ok {
		return name
	}
	return shapeNames[ShapeUnknown]
}

// MarshalText keeps JSON output readable.
func (s Shape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// resolve picks the reply field of tree by fixed precedence.
func resolve(tree gjson.Result) (gjson.Result, Shape, error) {
	if tree.IsArray() {
		if v := tree.Get("0.output"); v.Exists() && tree.Get("0").IsObject() {
			return v, ShapeArrayOutput, nil
		}
	}
	if tree.IsObject() {
		data := tree.Get("data.response")
		if tree.Get("success").Type == gjson.True && data.Exists() {
			return data, ShapeSuccessEnvelope, nil
		}
		if data.Exists() {
			return data, ShapeDataResponse, nil
		}
		if v := tree.Get("output"); v.Exists() {
			return v, ShapeDirectOutput, nil
		}
		if v := tree.Get("response"); v.Exists() {
			return v, ShapeDirectResponse, nil
		}
		if v := tree.Get("message"); v.Exists() {
			return v, ShapeDirectMessage, nil
		}
	}
	return gjson.Result{}, ShapeUnknown, &Error{Kind: KindUnrecognizedShape}
}

// wrapObject builds the synthetic {"<field>": text} tree for scanned text.
func wrapObject(field, text string) gjson.Result {
	b, _ := json.Marshal(map[string]string{field: text})
	return gjson.ParseBytes(b)
}

// wrapArrayOutput builds the synthetic [{"output": text}] tree for recovered text.
func wrapArrayOutput(text string) gjson.Result {
	b, _ := json.Marshal([]map[string]string{{"output": text}})
	return gjson.ParseBytes(b)
}

var (
	audioMarker   = regexp.MustCompile(`(?i)^\s*(?:\[AUDIO\]\s*)+`)
	stickerMarker = regexp.MustCompile(`(?i)(?:\s*\[FIGURINHAS\])+\s*$`)
)

// postProcess turns the resolved value into display text. Null and
// non-string values become emptyReply.
func postProcess(v gjson.Result, emptyReply string) string {
	if v.Type != gjson.String {
		return emptyReply
	}
	return Clean(v.Str)
}

// Clean strips control characters, the leading [AUDIO] marker and the
// trailing [FIGURINHAS] marker, then trims. Tab, LF and CR are kept.
// Clean(Clean(s)) == Clean(s).
func Clean(s string) string {
	s = strings.Map(func(r rune) rune {
		if isControl(r) {
			return -1
		}
		return r
	}, s)
	s = audioMarker.ReplaceAllString(s, "")
	s = stickerMarker.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
