package gemini

import "encoding/base64"

// SignPrompt asks for the sign name only, or an explicit refusal.
const SignPrompt = "Identify this traffic sign. If it's a traffic sign, output ONLY the name of the sign with no explanation or additional text. If it's not a traffic sign, just say 'Not a traffic sign'."

// InlineData carries base64 encoded bytes inside the request body.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Part is one element of a content entry. Exactly one field is set.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// Content is a role-less list of parts.
type Content struct {
	Parts []Part `json:"parts"`
}

// GenerationConfig holds the sampling parameters.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// GenerateRequest is the generateContent request body.
type GenerateRequest struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

// DefaultGenerationConfig keeps answers short and near-deterministic.
var DefaultGenerationConfig = GenerationConfig{
	Temperature:     0.2,
	TopP:            0.8,
	TopK:            40,
	MaxOutputTokens: 100,
}

// NewGenerateRequest builds a single-turn request with prompt and image.
func NewGenerateRequest(prompt, mimeType string, image []byte) GenerateRequest {
	return GenerateRequest{
		Contents: []Content{{
			Parts: []Part{
				{Text: prompt},
				{InlineData: &InlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
		GenerationConfig: DefaultGenerationConfig,
	}
}
