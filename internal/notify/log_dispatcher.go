package notify

import (
	"context"
	"log"

	"github.com/star-discord/legion-kanri-bot/internal/model"
)

// LogDispatcher writes notifications to the process log. It stands in
// for a real gateway in development and keeps the wiring honest in
// tests.
type LogDispatcher struct {
	logger *log.Logger
}

func NewLogDispatcher(logger *log.Logger) *LogDispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) QuestAccepted(ctx context.Context, q model.Quest, acc model.Acceptance, wasFull bool) error {
	_ = ctx
	d.logger.Printf("notify: quest accepted guild=%s quest=%s user=%s people=%d full=%t",
		q.GuildID, q.ID, acc.UserID, acc.People, wasFull)
	return nil
}

func (d *LogDispatcher) SendDirect(ctx context.Context, userID string, msg Message) error {
	_ = ctx
	d.logger.Printf("notify: dm user=%s quest=%q from=%s", userID, msg.QuestTitle, msg.FromTag)
	return nil
}
