package relay

import (
	"encoding/json"
)

// EventType discriminates StreamEvent variants on the wire.
type EventType string

const (
	// EventTypeUser echoes the user turn that started a response.
	EventTypeUser EventType = "user"
	// EventTypeChunk carries one incremental fragment of assistant text.
	EventTypeChunk EventType = "chunk"
	// EventTypeComplete carries the authoritative final assistant text.
	EventTypeComplete EventType = "complete"
)

// StreamEvent is the wire-level broadcast payload delivered to subscribers.
// For a single logical response, zero or more chunk events precede exactly
// one complete event. Consumers concatenate chunk contents in arrival order
// for in-progress display and treat the complete content as final.
type StreamEvent struct {
	Role        string    `json:"role"`
	Type        EventType `json:"type"`
	Content     string    `json:"content"`
	IsStreaming *bool     `json:"isStreaming,omitempty"`
}

// UserEvent builds the user-turn echo event.
func UserEvent(content string) StreamEvent {
	return StreamEvent{
		Role:    "user",
		Type:    EventTypeUser,
		Content: content,
	}
}

// ChunkEvent builds a streaming chunk event.
func ChunkEvent(content string) StreamEvent {
	streaming := true
	return StreamEvent{
		Role:        "assistant",
		Type:        EventTypeChunk,
		Content:     content,
		IsStreaming: &streaming,
	}
}

// CompleteEvent builds the final complete event.
func CompleteEvent(content string) StreamEvent {
	streaming := false
	return StreamEvent{
		Role:        "assistant",
		Type:        EventTypeComplete,
		Content:     content,
		IsStreaming: &streaming,
	}
}

// Encode serializes the event to its JSON wire form.
func (e StreamEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}
