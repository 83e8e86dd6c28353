// Package notify delivers post-commit quest events to participants.
// Delivery runs after the store write and is best-effort: a failed
// send is reported per recipient and never rolls back the mutation.
package notify

import (
	"context"

	"github.com/star-discord/legion-kanri-bot/internal/model"
)

// Message is a direct message to one participant.
type Message struct {
	QuestTitle string
	Body       string
	FromTag    string
	GuildID    string
}

// Delivery is the per-recipient outcome of a broadcast.
type Delivery struct {
	UserID string `json:"userId"`
	Err    error  `json:"-"`
	OK     bool   `json:"ok"`
}

// Dispatcher is the outbound notification contract. Implementations
// talk to whatever frontend (Discord gateway, mail, ...) is wired in.
type Dispatcher interface {
	// QuestAccepted announces a committed acceptance to the quest's
	// organizer channel. wasFull marks the acceptance that closed
	// the quest.
	QuestAccepted(ctx context.Context, q model.Quest, acc model.Acceptance, wasFull bool) error

	// SendDirect delivers one message to one user.
	SendDirect(ctx context.Context, userID string, msg Message) error
}
