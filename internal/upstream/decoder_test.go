package upstream

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedAll(t *testing.T, d *frameDecoder, chunks ...string) []string {
	t.Helper()
	var deltas []string
	for _, chunk := range chunks {
		err := d.feed([]byte(chunk), func(delta string) {
			deltas = append(deltas, delta)
		})
		require.NoError(t, err)
	}
	return deltas
}

func TestFrameDecoder_DecodesFrames(t *testing.T) {
	d := newFrameDecoder(zerolog.Nop())

	deltas := feedAll(t, d,
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\", world\"}}]}\n\ndata: [DONE]\n\n",
	)

	assert.Equal(t, []string{"Hello", ", world"}, deltas)
	assert.True(t, d.done)
}

func TestFrameDecoder_RetainsPartialLine(t *testing.T) {
	d := newFrameDecoder(zerolog.Nop())

	// Frame split across two reads at an arbitrary byte boundary
	deltas := feedAll(t, d,
		"data: {\"choices\":[{\"delta\":{\"cont",
		"ent\":\"split\"}}]}\n\n",
	)

	assert.Equal(t, []string{"split"}, deltas)
}

func TestFrameDecoder_FiltersControlTokens(t *testing.T) {
	d := newFrameDecoder(zerolog.Nop())

	deltas := feedAll(t, d,
		"data: {\"choices\":[{\"delta\":{\"content\":\"<s>def \"}}]}\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"search():\\n    pass</s>\"}}]}\n",
	)

	// Tokens stripped, whitespace untouched
	assert.Equal(t, []string{"def ", "search():\n    pass"}, deltas)
}

func TestFrameDecoder_TokenOnlyDeltaEmitsNothing(t *testing.T) {
	d := newFrameDecoder(zerolog.Nop())

	deltas := feedAll(t, d,
		"data: {\"choices\":[{\"delta\":{\"content\":\"<|endoftext|>\"}}]}\n",
	)

	assert.Empty(t, deltas)
}

func TestFrameDecoder_DropsMalformedFrames(t *testing.T) {
	d := newFrameDecoder(zerolog.Nop())

	deltas := feedAll(t, d,
		"data: {not json}\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n",
	)

	assert.Equal(t, []string{"ok"}, deltas)
}

func TestFrameDecoder_CapturesFinishReason(t *testing.T) {
	d := newFrameDecoder(zerolog.Nop())

	feedAll(t, d,
		"data: {\"choices\":[{\"delta\":{\"content\":\"partial\"},\"finish_reason\":null}]}\n",
		"data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"length\"}]}\n",
	)

	assert.Equal(t, "length", d.finishReason())
}

func TestFrameDecoder_DetectsErrorBody(t *testing.T) {
	d := newFrameDecoder(zerolog.Nop())

	err := d.feed([]byte(`{"error":{"message":"model overloaded"}}`), func(string) {
		t.Fatal("no deltas expected")
	})

	require.Error(t, err)
	var upErr *Error
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "model overloaded", upErr.Message)
}

func TestFrameDecoder_ErrorStringInsideFrameIsNotAnError(t *testing.T) {
	d := newFrameDecoder(zerolog.Nop())

	deltas := feedAll(t, d,
		"data: {\"choices\":[{\"delta\":{\"content\":\"the \\\"error\\\" keyword\"}}]}\n",
	)

	assert.Equal(t, []string{`the "error" keyword`}, deltas)
}

func TestFilterTokens(t *testing.T) {
	assert.Equal(t, "  keep\nspacing  ", FilterTokens("<s>  keep\nspacing  </s>"))
	assert.Equal(t, "", FilterTokens("<|im_start|><|im_end|>"))
	assert.Equal(t, "plain", FilterTokens("plain"))
}
