package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"github.com/vijay5b3/SkillSpeak/internal/config"
	"github.com/vijay5b3/SkillSpeak/internal/metrics"
)

// continueInstruction is appended as a synthetic user turn when the
// provider stops on its token limit.
const continueInstruction = "Continue your previous answer exactly from where it stopped. Do not repeat anything you already wrote."

const finishReasonLength = "length"

// Client talks to an OpenAI-wire-compatible completion provider.
type Client struct {
	httpClient *http.Client
	oai        openai.Client
	cfg        config.UpstreamConfig
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// New creates an upstream client from configuration.
func New(cfg config.UpstreamConfig, logger zerolog.Logger, m *metrics.Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		oai: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")+"/"),
		),
		cfg:     cfg,
		logger:  logger.With().Str("component", "upstream").Logger(),
		metrics: m,
	}
}

// Stream runs a streaming completion for the conversation, invoking
// onDelta for every filtered text fragment as it decodes. When the
// provider reports a length-limited stop, exactly one continuation
// request is issued and its text is newline-joined onto the partial text.
// The returned text is the concatenation of all emitted deltas with the
// token filter re-applied over the whole response and surrounding
// whitespace trimmed.
func (c *Client) Stream(ctx context.Context, turns []Turn, onDelta func(string)) (string, error) {
	conversation := c.withSystemPrompt(turns)

	text, finish, err := c.streamOnce(ctx, "stream", conversation, onDelta)
	if err != nil {
		return "", err
	}
	if finish != finishReasonLength {
		return finalizeText(text), nil
	}

	c.logger.Info().
		Int("partialLen", len(text)).
		Msg("Completion truncated by token limit, requesting continuation")

	continuation := make([]Turn, 0, len(conversation)+2)
	continuation = append(continuation, conversation...)
	continuation = append(continuation,
		Turn{Role: "assistant", Content: text},
		Turn{Role: "user", Content: continueInstruction},
	)

	more, _, err := c.streamOnce(ctx, "continuation", continuation, onDelta)
	if err != nil {
		return "", err
	}
	if more == "" {
		return finalizeText(text), nil
	}
	return finalizeText(text + "\n" + more), nil
}

// finalizeText runs the token filter over the assembled response and trims
// surrounding whitespace. Per-delta filtering cannot catch a control token
// split across frame boundaries.
func finalizeText(s string) string {
	return strings.TrimSpace(FilterTokens(s))
}

// streamOnce performs a single streaming request and decodes its frames.
func (c *Client) streamOnce(ctx context.Context, kind string, turns []Turn, onDelta func(string)) (string, string, error) {
	start := time.Now()
	text, finish, err := c.doStream(ctx, turns, onDelta)

	status := "ok"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.UpstreamRequestsTotal.WithLabelValues(kind, status).Inc()
		c.metrics.UpstreamDuration.Observe(time.Since(start).Seconds())
	}
	return text, finish, err
}

func (c *Client) doStream(ctx context.Context, turns []Turn, onDelta func(string)) (string, string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    turns,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Stream:      true,
		TopP:        c.cfg.TopP,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", &Error{StatusCode: http.StatusBadGateway, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", c.readError(resp)
	}

	var full strings.Builder
	decoder := newFrameDecoder(c.logger)
	emit := func(delta string) {
		full.WriteString(delta)
		onDelta(delta)
	}

	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if err := decoder.feed(buf[:n], emit); err != nil {
				return "", "", err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", "", &Error{StatusCode: http.StatusBadGateway, Message: readErr.Error()}
		}
	}

	return full.String(), decoder.finishReason(), nil
}

// Complete runs a non-streaming completion. Used by the response shaper's
// forced retry, where chunks are not broadcast.
func (c *Client) Complete(ctx context.Context, turns []Turn) (string, error) {
	start := time.Now()
	text, err := c.doComplete(ctx, c.withSystemPrompt(turns))

	status := "ok"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.UpstreamRequestsTotal.WithLabelValues("completion", status).Inc()
		c.metrics.UpstreamDuration.Observe(time.Since(start).Seconds())
	}
	return text, err
}

func (c *Client) doComplete(ctx context.Context, turns []Turn) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(turn.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.cfg.Model),
		Messages: messages,
	}
	if c.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.cfg.MaxTokens))
	}
	if c.cfg.Temperature > 0 {
		params.Temperature = openai.Float(c.cfg.Temperature)
	}

	response, err := c.oai.Chat.Completions.New(ctx, params)
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			return "", &Error{StatusCode: apierr.StatusCode, Message: apierr.Error()}
		}
		return "", &Error{StatusCode: http.StatusBadGateway, Message: err.Error()}
	}
	if len(response.Choices) == 0 {
		return "", nil
	}

	return FilterTokens(response.Choices[0].Message.Content), nil
}

func (c *Client) endpoint() string {
	return strings.TrimSuffix(c.cfg.BaseURL, "/") + "/chat/completions"
}

// withSystemPrompt prepends the configured system prompt override unless
// the caller already supplied a system turn.
func (c *Client) withSystemPrompt(turns []Turn) []Turn {
	if c.cfg.SystemPrompt == "" {
		return turns
	}
	if len(turns) > 0 && turns[0].Role == "system" {
		return turns
	}
	out := make([]Turn, 0, len(turns)+1)
	out = append(out, Turn{Role: "system", Content: c.cfg.SystemPrompt})
	out = append(out, turns...)
	return out
}

// readError decodes the provider's error envelope from a non-2xx response.
func (c *Client) readError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Message != "" {
		return &Error{StatusCode: resp.StatusCode, Message: body.Error.Message}
	}
	return &Error{StatusCode: resp.StatusCode, Message: fmt.Sprintf("upstream returned status %d", resp.StatusCode)}
}
