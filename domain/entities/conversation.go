package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the speaker of one transcript entry.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// TranscriptionEntry is one committed utterance in the conversation history.
type TranscriptionEntry struct {
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// Conversation is the ordered history of one application session.
type Conversation struct {
	ID       string               `json:"id"`
	Language string               `json:"language"`
	Entries  []TranscriptionEntry `json:"entries"`
	StartedAt time.Time           `json:"started_at"`
}

// NewConversation creates an empty conversation in the given language.
func NewConversation(language string) *Conversation {
	return &Conversation{
		ID:        uuid.NewString(),
		Language:  language,
		StartedAt: time.Now(),
	}
}

// Append adds an entry to the history.
func (c *Conversation) Append(e TranscriptionEntry) {
	c.Entries = append(c.Entries, e)
}

const summaryMaxRunes = 120

// Summarize produces the stored summary line: the first non-empty user
// utterance, truncated.
func (c *Conversation) Summarize() string {
	for _, e := range c.Entries {
		if e.Role != RoleUser {
			continue
		}
		text := strings.TrimSpace(e.Text)
		if text == "" {
			continue
		}
		runes := []rune(text)
		if len(runes) > summaryMaxRunes {
			return string(runes[:summaryMaxRunes])
		}
		return text
	}
	return ""
}

// ConversationSummary is the persisted trace of a finished conversation.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Language  string    `json:"language"`
	Summary   string    `json:"summary"`
	Entries   int       `json:"entries"`
	CreatedAt time.Time `json:"created_at"`
}
