package upstream

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
)

const doneSentinel = "[DONE]"

// frameDecoder incrementally parses the provider's SSE event framing.
// Raw bytes are appended to a line buffer; complete lines are consumed,
// the trailing incomplete fragment is retained for the next read. Each
// `data: ` line is structured-decoded; an unrecognized frame is dropped
// (fail closed), never partially extracted.
type frameDecoder struct {
	buf     strings.Builder
	sawData bool
	done    bool
	finish  string
	logger  zerolog.Logger
}

func newFrameDecoder(logger zerolog.Logger) *frameDecoder {
	return &frameDecoder{logger: logger}
}

// feed consumes a raw read from the provider and emits zero or more
// filtered text deltas. It returns a non-nil error when the provider sent
// a JSON error body instead of an event stream.
func (d *frameDecoder) feed(p []byte, emit func(delta string)) error {
	d.buf.Write(p)
	pending := d.buf.String()

	// A provider-side failure can arrive as a bare JSON error object
	// before any event frame.
	if !d.sawData && !strings.Contains(pending, "data:") && strings.Contains(pending, `"error"`) {
		var body errorBody
		if err := json.Unmarshal([]byte(pending), &body); err == nil && body.Error.Message != "" {
			return &Error{StatusCode: 502, Message: body.Error.Message}
		}
	}

	lines := strings.Split(pending, "\n")
	tail := lines[len(lines)-1]
	lines = lines[:len(lines)-1]

	d.buf.Reset()
	d.buf.WriteString(tail)

	for _, line := range lines {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		d.sawData = true

		payload := strings.TrimSpace(line[len("data: "):])
		if payload == doneSentinel {
			d.done = true
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to parse streaming chunk, dropping frame")
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			d.finish = choice.FinishReason
		}

		if choice.Delta.Content == "" {
			continue
		}
		// Filter control tokens without trimming whitespace
		delta := FilterTokens(choice.Delta.Content)
		if delta != "" {
			emit(delta)
		}
	}

	return nil
}

// finishReason returns the last finish reason seen, if any.
func (d *frameDecoder) finishReason() string {
	return d.finish
}
