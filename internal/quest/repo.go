package quest

import (
	"context"

	"github.com/star-discord/legion-kanri-bot/internal/model"
)

// ListFilter narrows List results.
type ListFilter struct {
	// Status:
	//   "" | "all" | "open" | "closed" | "archived" | "unarchived"
	Status string
}

// Store owns the authoritative copy of each quest record. Reads hand
// out clones; every write goes through ConditionalUpdate, which is
// serialized per (guildID, questID).
type Store interface {
	Create(ctx context.Context, q model.Quest) (model.Quest, error)

	Get(ctx context.Context, guildID, questID string) (model.Quest, error)
	List(ctx context.Context, guildID string, filter ListFilter) ([]model.Quest, error)

	// ListActiveByUser returns quests on which the user holds an
	// acceptance with active status, in creation order.
	ListActiveByUser(ctx context.Context, guildID, userID string) ([]model.Quest, error)

	// ConditionalUpdate re-reads the freshest record under the key's
	// lock, runs check against it, applies mutate on success, persists
	// the result and returns it. A check failure surfaces unchanged so
	// callers keep the typed conflict. No two updates for the same key
	// ever observe the same current snapshot.
	ConditionalUpdate(ctx context.Context, guildID, questID string,
		check func(model.Quest) error,
		mutate func(*model.Quest) error) (model.Quest, error)
}

func matchesFilter(q model.Quest, f ListFilter) bool {
	switch f.Status {
	case "", "all":
		return true
	case "open":
		return q.Status() == model.QuestOpen
	case "closed":
		return q.Status() == model.QuestClosed
	case "archived":
		return q.IsArchived
	case "unarchived":
		return !q.IsArchived
	default:
		return true
	}
}
