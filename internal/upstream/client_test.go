package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vijay5b3/SkillSpeak/internal/config"
	"github.com/vijay5b3/SkillSpeak/internal/metrics"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return New(config.UpstreamConfig{
		APIKey:      "sk-or-v1-test",
		BaseURL:     baseURL,
		Model:       "mistralai/mistral-7b-instruct",
		MaxTokens:   6000,
		Temperature: 0.3,
		TopP:        0.95,
		Timeout:     5 * time.Second,
	}, zerolog.Nop(), metrics.NewMetrics())
}

func sseFrame(content, finish string) string {
	finishJSON := "null"
	if finish != "" {
		finishJSON = fmt.Sprintf("%q", finish)
	}
	data, _ := json.Marshal(content)
	return fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%s},\"finish_reason\":%s}]}\n\n", data, finishJSON)
}

func TestClient_StreamHappyPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-or-v1-test", r.Header.Get("Authorization"))

		var req chatRequest
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		assert.True(t, req.Stream)
		assert.Equal(t, "mistralai/mistral-7b-instruct", req.Model)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseFrame("Binary ", ""))
		fmt.Fprint(w, sseFrame("search.", "stop"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c := testClient(t, server.URL)

	var deltas []string
	text, err := c.Stream(context.Background(), []Turn{{Role: "user", Content: "What is binary search?"}}, func(d string) {
		deltas = append(deltas, d)
	})

	require.NoError(t, err)
	assert.Equal(t, "Binary search.", text)
	assert.Equal(t, []string{"Binary ", "search."}, deltas)
}

func TestClient_StreamUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited"}}`)
	}))
	defer server.Close()

	c := testClient(t, server.URL)

	_, err := c.Stream(context.Background(), []Turn{{Role: "user", Content: "hi"}}, func(string) {})
	require.Error(t, err)

	var upErr *Error
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusTooManyRequests, upErr.StatusCode)
	assert.Equal(t, "rate limited", upErr.Message)
}

func TestClient_StreamErrorBodyInsteadOfStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 but a JSON error object instead of SSE frames
		fmt.Fprint(w, `{"error":{"message":"model overloaded"}}`)
	}))
	defer server.Close()

	c := testClient(t, server.URL)

	_, err := c.Stream(context.Background(), []Turn{{Role: "user", Content: "hi"}}, func(string) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestClient_StreamContinuationOnTruncation(t *testing.T) {
	var requests []chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		requests = append(requests, req)

		w.Header().Set("Content-Type", "text/event-stream")
		if len(requests) == 1 {
			fmt.Fprint(w, sseFrame("def search(", "length"))
		} else {
			fmt.Fprint(w, sseFrame("arr, target):", "stop"))
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c := testClient(t, server.URL)

	var deltas []string
	text, err := c.Stream(context.Background(), []Turn{{Role: "user", Content: "Write code for binary search"}}, func(d string) {
		deltas = append(deltas, d)
	})

	require.NoError(t, err)
	require.Len(t, requests, 2, "exactly one continuation call")

	// Merged text starts with the partial and is newline-joined
	assert.True(t, strings.HasPrefix(text, "def search("))
	assert.Equal(t, "def search(\narr, target):", text)

	// Continuation carries the partial assistant text plus the synthetic
	// continue instruction
	cont := requests[1].Messages
	require.GreaterOrEqual(t, len(cont), 3)
	assert.Equal(t, "assistant", cont[len(cont)-2].Role)
	assert.Equal(t, "def search(", cont[len(cont)-2].Content)
	assert.Equal(t, "user", cont[len(cont)-1].Role)
	assert.Equal(t, continueInstruction, cont[len(cont)-1].Content)
}

func TestClient_StreamTokenOnlyOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseFrame("<s>", ""))
		fmt.Fprint(w, sseFrame("</s><|endoftext|>", "stop"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c := testClient(t, server.URL)

	var deltas []string
	text, err := c.Stream(context.Background(), []Turn{{Role: "user", Content: "hi"}}, func(d string) {
		deltas = append(deltas, d)
	})

	require.NoError(t, err)
	assert.Empty(t, text, "caller substitutes the fallback message")
	assert.Empty(t, deltas)
}

func TestClient_StreamRefiltersAssembledText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		// Control token split across two frames, invisible to the
		// per-delta filter
		fmt.Fprint(w, sseFrame("Hello <|endof", ""))
		fmt.Fprint(w, sseFrame("text|>world  ", "stop"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c := testClient(t, server.URL)

	var deltas []string
	text, err := c.Stream(context.Background(), []Turn{{Role: "user", Content: "hi"}}, func(d string) {
		deltas = append(deltas, d)
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello world", text, "split token filtered and whitespace trimmed from the final text")
	// Deltas are emitted as decoded; only the final text is re-filtered
	assert.Equal(t, []string{"Hello <|endof", "text|>world  "}, deltas)
}

func TestClient_StreamSplitTokenOnlyOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseFrame("<|endof", ""))
		fmt.Fprint(w, sseFrame("text|>", "stop"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c := testClient(t, server.URL)

	text, err := c.Stream(context.Background(), []Turn{{Role: "user", Content: "hi"}}, func(string) {})
	require.NoError(t, err)
	assert.Empty(t, text, "caller substitutes the fallback message")
}

func TestClient_StreamSystemPromptOverride(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseFrame("ok", "stop"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	c.cfg.SystemPrompt = "You are a cheat-sheet assistant."

	_, err := c.Stream(context.Background(), []Turn{{Role: "user", Content: "hi"}}, func(string) {})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(got.Messages), 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "You are a cheat-sheet assistant.", got.Messages[0].Content)

	// A caller-supplied system turn wins over the override
	got = chatRequest{}
	_, err = c.Stream(context.Background(), []Turn{
		{Role: "system", Content: "client system"},
		{Role: "user", Content: "hi"},
	}, func(string) {})
	require.NoError(t, err)
	assert.Equal(t, "client system", got.Messages[0].Content)
}

func TestClient_TransportError(t *testing.T) {
	c := testClient(t, "http://127.0.0.1:1")

	_, err := c.Stream(context.Background(), []Turn{{Role: "user", Content: "hi"}}, func(string) {})
	require.Error(t, err)

	var upErr *Error
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusBadGateway, upErr.StatusCode)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "boom", (&Error{StatusCode: 500, Message: "boom"}).Error())
	assert.Equal(t, "upstream returned status 503", (&Error{StatusCode: 503}).Error())
}
