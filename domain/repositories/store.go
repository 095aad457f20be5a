package repositories

import (
	"context"

	"github.com/jansahayak/agent/domain/entities"
)

// ConversationStore persists a bounded list of past conversation summaries.
type ConversationStore interface {
	// Save writes one summary, pruning the store to its retention cap.
	Save(ctx context.Context, s entities.ConversationSummary) error
	// Recent lists summaries, newest first.
	Recent(ctx context.Context, limit int) ([]entities.ConversationSummary, error)
	Close() error
}
