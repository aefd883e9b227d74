package gemini

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Shape names the envelope layout an answer was extracted from.
type Shape string

const (
	ShapeNestedParts   Shape = "nested_parts"
	ShapeFlatText      Shape = "flat_text"
	ShapeCandidateText Shape = "candidate_text"
	ShapeNoCandidates  Shape = "no_candidates"
	ShapeTopLevelText  Shape = "top_level_text"
	ShapeUnrecognized  Shape = "unrecognized"
	ShapeMalformed     Shape = "malformed"
)

// Placeholder labels. A resolved Label is never empty.
const (
	LabelNoResult     = "Unknown (No result from API)"
	LabelEmpty        = "Unknown (empty response)"
	LabelParsingError = "Unknown (parsing error)"
	NotATrafficSign   = "Not a traffic sign"
)

// Answer is the label extracted from a response envelope.
type Answer struct {
	Shape Shape
	Label string
	// Reason explains a malformed or empty envelope; empty otherwise.
	Reason string
}

// Unknown reports whether the label is a placeholder rather than model text.
func (a Answer) Unknown() bool {
	return strings.HasPrefix(a.Label, "Unknown (")
}

type shapeError struct {
	path string
	want string
}

func (e *shapeError) Error() string {
	return fmt.Sprintf("%s: expected %s", e.path, e.want)
}

// Resolve matches envelope against the known response layouts in order and
// extracts a trimmed label.
func Resolve(envelope any) Answer {
	shape, text, err := match(envelope)
	if err != nil {
		return Answer{Shape: ShapeMalformed, Label: LabelParsingError, Reason: err.Error()}
	}

	switch shape {
	case ShapeNoCandidates:
		return Answer{Shape: shape, Label: LabelNoResult, Reason: "candidates list is empty"}
	case ShapeUnrecognized:
		text = stringify(envelope)
	}

	label := strings.TrimSpace(text)
	if label == "" {
		return Answer{Shape: shape, Label: LabelEmpty, Reason: "response text is empty"}
	}
	return Answer{Shape: shape, Label: label}
}

func match(envelope any) (Shape, string, error) {
	root, ok := envelope.(map[string]any)
	if !ok {
		return "", "", &shapeError{path: "response", want: "an object"}
	}

	if raw, ok := root["candidates"]; ok {
		candidates, ok := raw.([]any)
		if !ok {
			return "", "", &shapeError{path: "candidates", want: "a list"}
		}
		if len(candidates) == 0 {
			return ShapeNoCandidates, "", nil
		}
		return matchCandidate(candidates[0])
	}

	if raw, ok := root["text"]; ok {
		text, ok := raw.(string)
		if !ok {
			return "", "", &shapeError{path: "text", want: "a string"}
		}
		return ShapeTopLevelText, text, nil
	}

	return ShapeUnrecognized, "", nil
}

func matchCandidate(raw any) (Shape, string, error) {
	candidate, ok := raw.(map[string]any)
	if !ok {
		return "", "", &shapeError{path: "candidates[0]", want: "an object"}
	}

	rawContent, ok := candidate["content"]
	if !ok {
		text, err := optionalString(candidate, "text", "candidates[0].text")
		return ShapeCandidateText, text, err
	}

	content, ok := rawContent.(map[string]any)
	if !ok {
		return "", "", &shapeError{path: "candidates[0].content", want: "an object"}
	}

	if rawParts, ok := content["parts"]; ok {
		parts, ok := rawParts.([]any)
		if !ok {
			return "", "", &shapeError{path: "candidates[0].content.parts", want: "a list"}
		}
		if len(parts) > 0 {
			part, ok := parts[0].(map[string]any)
			if !ok {
				return "", "", &shapeError{path: "candidates[0].content.parts[0]", want: "an object"}
			}
			text, ok := part["text"].(string)
			if !ok {
				return "", "", &shapeError{path: "candidates[0].content.parts[0].text", want: "a string"}
			}
			return ShapeNestedParts, text, nil
		}
	}

	text, err := optionalString(content, "text", "candidates[0].content.text")
	return ShapeFlatText, text, err
}

// optionalString treats an absent key as "" and any non-string as malformed.
func optionalString(obj map[string]any, key, path string) (string, error) {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", &shapeError{path: path, want: "a string"}
	}
	return s, nil
}

func stringify(envelope any) string {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Sprintf("%v", envelope)
	}
	return string(data)
}
