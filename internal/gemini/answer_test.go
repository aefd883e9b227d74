package gemini

import (
	"encoding/json"
	"strings"
	"testing"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("invalid fixture %q: %v", raw, err)
	}
	return v
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		envelope  string
		wantShape Shape
		wantLabel string
	}{
		{
			name:      "nested parts",
			envelope:  `{"candidates":[{"content":{"parts":[{"text":"  Stop sign\n"}],"role":"model"}}]}`,
			wantShape: ShapeNestedParts,
			wantLabel: "Stop sign",
		},
		{
			name:      "only first candidate and part are used",
			envelope:  `{"candidates":[{"content":{"parts":[{"text":"Yield"},{"text":"ignored"}]}},{"content":{"parts":[{"text":"Stop"}]}}]}`,
			wantShape: ShapeNestedParts,
			wantLabel: "Yield",
		},
		{
			name:      "not a sign",
			envelope:  `{"candidates":[{"content":{"parts":[{"text":"Not a traffic sign"}]}}]}`,
			wantShape: ShapeNestedParts,
			wantLabel: NotATrafficSign,
		},
		{
			name:      "flat content text",
			envelope:  `{"candidates":[{"content":{"text":"Priority road"}}]}`,
			wantShape: ShapeFlatText,
			wantLabel: "Priority road",
		},
		{
			name:      "empty parts falls back to content text",
			envelope:  `{"candidates":[{"content":{"parts":[],"text":"Keep right"}}]}`,
			wantShape: ShapeFlatText,
			wantLabel: "Keep right",
		},
		{
			name:      "candidate level text",
			envelope:  `{"candidates":[{"text":"No entry","finishReason":"STOP"}]}`,
			wantShape: ShapeCandidateText,
			wantLabel: "No entry",
		},
		{
			name:      "empty candidates",
			envelope:  `{"candidates":[]}`,
			wantShape: ShapeNoCandidates,
			wantLabel: LabelNoResult,
		},
		{
			name:      "top level text",
			envelope:  `{"text":"Road work"}`,
			wantShape: ShapeTopLevelText,
			wantLabel: "Road work",
		},
		{
			name:      "whitespace text",
			envelope:  `{"candidates":[{"content":{"parts":[{"text":"   \n\t"}]}}]}`,
			wantShape: ShapeNestedParts,
			wantLabel: LabelEmpty,
		},
		{
			name:      "content without text",
			envelope:  `{"candidates":[{"content":{"role":"model"}}]}`,
			wantShape: ShapeFlatText,
			wantLabel: LabelEmpty,
		},
		{
			name:      "part without text",
			envelope:  `{"candidates":[{"content":{"parts":[{"inlineData":{}}]}}]}`,
			wantShape: ShapeMalformed,
			wantLabel: LabelParsingError,
		},
		{
			name:      "candidates is not a list",
			envelope:  `{"candidates":{"content":"x"}}`,
			wantShape: ShapeMalformed,
			wantLabel: LabelParsingError,
		},
		{
			name:      "content is not an object",
			envelope:  `{"candidates":[{"content":"Stop"}]}`,
			wantShape: ShapeMalformed,
			wantLabel: LabelParsingError,
		},
		{
			name:      "null envelope",
			envelope:  `null`,
			wantShape: ShapeMalformed,
			wantLabel: LabelParsingError,
		},
		{
			name:      "envelope is a list",
			envelope:  `[{"text":"Stop"}]`,
			wantShape: ShapeMalformed,
			wantLabel: LabelParsingError,
		},
		{
			name:      "envelope is a bare string",
			envelope:  `"Stop"`,
			wantShape: ShapeMalformed,
			wantLabel: LabelParsingError,
		},
		{
			name:      "top level text is a number",
			envelope:  `{"text":42}`,
			wantShape: ShapeMalformed,
			wantLabel: LabelParsingError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(decode(t, tt.envelope))
			if got.Shape != tt.wantShape {
				t.Errorf("expected shape %s, got %s", tt.wantShape, got.Shape)
			}
			if got.Label != tt.wantLabel {
				t.Errorf("expected label %q, got %q", tt.wantLabel, got.Label)
			}
		})
	}
}

func TestResolveUnrecognizedStringifiesEnvelope(t *testing.T) {
	got := Resolve(decode(t, `{"promptFeedback":{"blockReason":"SAFETY"}}`))

	if got.Shape != ShapeUnrecognized {
		t.Fatalf("expected unrecognized, got %s", got.Shape)
	}
	if !strings.Contains(got.Label, "blockReason") || !strings.Contains(got.Label, "SAFETY") {
		t.Fatalf("expected stringified envelope, got %q", got.Label)
	}
}

func TestResolveLabelNeverEmpty(t *testing.T) {
	inputs := []any{nil, "", []any{}, map[string]any{}, map[string]any{"text": ""}}
	for _, in := range inputs {
		if got := Resolve(in); got.Label == "" {
			t.Fatalf("empty label for %#v", in)
		}
	}
}

func TestAnswerUnknown(t *testing.T) {
	if !(Answer{Label: LabelParsingError}).Unknown() {
		t.Fatal("expected placeholder to be unknown")
	}
	if (Answer{Label: "Stop"}).Unknown() {
		t.Fatal("expected sign name to be known")
	}
}
