package upstream

import (
	"fmt"
	"strings"
)

// Turn is one conversation message. The relay treats the sequence as
// opaque input; it does not enforce alternation or length limits.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Error is an upstream failure surfaced to the HTTP caller with the
// provider's status code and message.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	}
	return e.Message
}

// chatRequest is the provider's completion request body.
type chatRequest struct {
	Model            string  `json:"model"`
	Messages         []Turn  `json:"messages"`
	MaxTokens        int     `json:"max_tokens"`
	Temperature      float64 `json:"temperature"`
	Stream           bool    `json:"stream"`
	TopP             float64 `json:"top_p,omitempty"`
	PresencePenalty  float64 `json:"presence_penalty"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
}

// streamChunk is one decoded SSE frame from the provider.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// errorBody is the provider's JSON error envelope.
type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// tokenFilter strips known control/sentinel substrings from model output.
// It must not trim whitespace: interior spacing and newlines carry
// formatting.
var tokenFilter = strings.NewReplacer(
	"<s>", "",
	"</s>", "",
	"<|endoftext|>", "",
	"<|im_start|>", "",
	"<|im_end|>", "",
)

// FilterTokens removes control tokens from a text fragment.
func FilterTokens(s string) string {
	return tokenFilter.Replace(s)
}
