// Package session manages conversation sessions and their persistence.
//
// A session starts as an in-memory draft and is only written to the store
// once it holds a complete exchange, so abandoned conversations leave no
// rows behind. The active-session pointer lives in a small state file
// guarded by a file lock, shared across processes.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the session does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrEmptySession indicates an attempt to persist a session with no messages.
	ErrEmptySession = errors.New("session has no messages")

	// ErrStreamingMessage indicates an attempt to persist a message still streaming.
	ErrStreamingMessage = errors.New("session contains a streaming message")
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TitleMaxLength bounds session titles regardless of how they were produced.
const TitleMaxLength = 60

// GroundingSource is one web citation attached to an assistant message.
type GroundingSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Message is one conversation turn.
type Message struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
	// Sources lists the knowledge-base documents that informed an
	// assistant message.
	Sources []string `json:"sources,omitempty"`
	// GroundingSources lists the web citations used for live grounding.
	GroundingSources []GroundingSource `json:"groundingSources,omitempty"`
	// Streaming marks a message whose content is still being produced.
	// A streaming message must never reach the store.
	Streaming bool      `json:"streaming,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is a conversation with its message history.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary is the listing view of a session, without its messages.
type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"messageCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewID derives a session ID from the creation instant.
func NewID(now time.Time) string {
	return fmt.Sprintf("s-%d", now.UnixMilli())
}

// NewMessage creates a message with a fresh ID.
func NewMessage(role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// TitleFromMessage derives a session title from the first user message:
// the message prefix, cut at a word boundary where possible, capped at
// TitleMaxLength runes.
func TitleFromMessage(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	if title == "" {
		return "New conversation"
	}

	runes := []rune(title)
	if len(runes) <= TitleMaxLength {
		return title
	}

	cut := string(runes[:TitleMaxLength])
	if i := strings.LastIndex(cut, " "); i > TitleMaxLength/2 {
		cut = cut[:i]
	}
	return cut + "…"
}
