package realtime

import (
	"encoding/json"
	"strconv"
	"time"
)

const (
	EventConnectionEstablished = "connection_established"
	EventPing                  = "ping"
	EventPong                  = "pong"
	EventChunk                 = "chunk"
	EventComplete              = "complete"
	EventStreamContent         = "stream_content"
	EventSuggestions           = "suggestions"
	EventError                 = "error"
)

// Inbound frame types.
const (
	FramePing           = "ping"
	FrameStreamRequest  = "stream_request"
	FrameGetSuggestions = "get_suggestions"
)

// SourceView is the single citation shape relayed to viewers.
type SourceView struct {
	Identifier string  `json:"identifier"`
	Title      string  `json:"title"`
	Locator    *string `json:"locator"`
	Content    *string `json:"content"`
}

// Event is an outbound frame. Only the fields relevant to Type are set.
type Event struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	MessageID      string          `json:"message_id,omitempty"`
	Content        *string         `json:"content,omitempty"`
	Title          string          `json:"title,omitempty"`
	Suggestions    []string        `json:"suggestions,omitempty"`
	Sources        []SourceView    `json:"sources,omitempty"`
	Timestamp      json.RawMessage `json:"timestamp,omitempty"`
	Error          string          `json:"error,omitempty"`
	Code           string          `json:"code,omitempty"`
}

// MarshalJSON always writes the list fields of suggestions and complete events,
// so viewers see [] rather than a missing key.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	switch e.Type {
	case EventSuggestions:
		return json.Marshal(struct {
			plain
			Suggestions []string `json:"suggestions"`
		}{plain(e), nonNil(e.Suggestions)})
	case EventComplete:
		sources := e.Sources
		if sources == nil {
			sources = []SourceView{}
		}
		return json.Marshal(struct {
			plain
			Suggestions []string     `json:"suggestions"`
			Sources     []SourceView `json:"sources"`
		}{plain(e), nonNil(e.Suggestions), sources})
	default:
		return json.Marshal(plain(e))
	}
}

type InboundFrame struct {
	Type      string          `json:"type"`
	MessageID string          `json:"message_id,omitempty"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

func ChunkEvent(messageID, content string) Event {
	return Event{Type: EventChunk, MessageID: messageID, Content: &content}
}

func CompleteEvent(messageID string, sources []SourceView, suggestions []string) Event {
	return Event{Type: EventComplete, MessageID: messageID, Sources: sources, Suggestions: suggestions}
}

func SuggestionsEvent(conversationID string, suggestions []string) Event {
	return Event{Type: EventSuggestions, ConversationID: conversationID, Suggestions: suggestions}
}

func StreamContentEvent(messageID, content string) Event {
	return Event{Type: EventStreamContent, MessageID: messageID, Content: &content}
}

func ErrorEvent(code, msg string) Event {
	return Event{Type: EventError, Code: code, Error: msg}
}

// unixTimestamp renders t as fractional unix seconds.
func unixTimestamp(t time.Time) json.RawMessage {
	secs := float64(t.UnixNano()) / float64(time.Second)
	return json.RawMessage(strconv.FormatFloat(secs, 'f', 3, 64))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
