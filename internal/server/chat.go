package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vijay5b3/SkillSpeak/internal/intent"
	"github.com/vijay5b3/SkillSpeak/internal/relay"
	"github.com/vijay5b3/SkillSpeak/internal/upstream"
)

type chatBody struct {
	Messages []upstream.Turn `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

// handleChat runs one completion round trip. The HTTP caller gets a single
// non-streaming JSON response while every push subscriber of the session
// sees the user echo, the live chunks, and the authoritative complete frame.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body chatBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.countChat("invalid")
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rawUser := lastUserTurn(body.Messages)
	lastUser := strings.TrimSpace(rawUser)
	if lastUser == "" {
		s.countChat("invalid")
		writeError(w, http.StatusBadRequest, "messages must contain a non-empty user turn")
		return
	}

	sessionID := relay.Canonical(sessionFrom(r))
	prof := s.profiles.Current()

	// Short greetings are answered locally without an upstream round trip.
	if intent.IsGreeting(lastUser) {
		s.registry.Broadcast(sessionID, relay.UserEvent(rawUser))
		s.registry.Broadcast(sessionID, relay.CompleteEvent(prof.Greeting))
		s.countChat("greeting")
		writeJSON(w, http.StatusOK, s.chatResponse(prof.Greeting))
		return
	}

	shape := intent.Classify(lastUser)
	turns := s.conversationTurns(body.Messages, shape)

	s.registry.Broadcast(sessionID, relay.UserEvent(rawUser))

	text, err := s.upstream.Stream(r.Context(), turns, func(delta string) {
		s.registry.Broadcast(sessionID, relay.ChunkEvent(delta))
	})
	if err != nil {
		// Chunks already broadcast stay broadcast; only the HTTP caller
		// sees the failure.
		s.countChat("upstream_error")
		s.logger.Error().Err(err).Str("sessionId", sessionID).Msg("Upstream completion failed")

		status := http.StatusBadGateway
		var upErr *upstream.Error
		if errors.As(err, &upErr) && upErr.StatusCode >= 400 {
			status = upErr.StatusCode
		}
		writeError(w, status, err.Error())
		return
	}

	if strings.TrimSpace(text) == "" {
		s.logger.Warn().Str("sessionId", sessionID).Msg("Empty completion, substituting fallback")
		text = prof.Fallback
	} else if shape.WantsCode && !intent.HasFencedCode(text) {
		text = s.enforceCodeShape(r, lastUser, text)
	}

	s.registry.Broadcast(sessionID, relay.CompleteEvent(text))
	s.countChat("ok")
	writeJSON(w, http.StatusOK, s.chatResponse(text))
}

// conversationTurns prepends the instruction prompt for the classified
// shape. An intent-specific prompt takes precedence over the configured
// system prompt override, which in turn beats the profile default.
func (s *Server) conversationTurns(messages []upstream.Turn, shape intent.Intent) []upstream.Turn {
	prof := s.profiles.Current()

	system := prof.System
	if s.cfg.Upstream.SystemPrompt != "" {
		system = s.cfg.Upstream.SystemPrompt
	}
	switch {
	case shape.WantsCode:
		system = prof.Code
	case shape.WantsSteps:
		system = prof.Steps
	}

	turns := make([]upstream.Turn, 0, len(messages)+1)
	turns = append(turns, upstream.Turn{Role: "system", Content: system})
	for _, m := range messages {
		if m.Role == "system" {
			// The relay owns the system prompt; client-supplied system
			// turns are dropped rather than stacked.
			continue
		}
		turns = append(turns, m)
	}
	return turns
}

// enforceCodeShape retries once, non-streaming, when a code request came
// back without a fenced block. The retry is invisible to subscribers. If it
// still produces no fence the best text available is wrapped as-is.
func (s *Server) enforceCodeShape(r *http.Request, lastUser, text string) string {
	prof := s.profiles.Current()

	s.logger.Info().Msg("Code requested but no fenced block produced, forcing retry")

	retry, err := s.upstream.Complete(r.Context(), []upstream.Turn{
		{Role: "system", Content: prof.Code},
		{Role: "user", Content: lastUser},
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Forced code retry failed, wrapping original text")
		return intent.WrapFence(text)
	}
	if intent.HasFencedCode(retry) {
		return retry
	}
	if strings.TrimSpace(retry) != "" {
		return intent.WrapFence(retry)
	}
	return intent.WrapFence(text)
}

func (s *Server) chatResponse(content string) chatResponse {
	return chatResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   s.cfg.Upstream.Model,
		Choices: []chatChoice{
			{
				Index:        0,
				Message:      chatMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			},
		},
	}
}

func (s *Server) countChat(status string) {
	if s.metrics != nil {
		s.metrics.ChatRequestsTotal.WithLabelValues(status).Inc()
	}
}

// lastUserTurn returns the content of the most recent user turn verbatim.
// Subscribers see the echo exactly as the client sent it; callers trim
// their own copy for classification.
func lastUserTurn(messages []upstream.Turn) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}
