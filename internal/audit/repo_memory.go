package audit

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLog keeps the most recent entries in a bounded ring and mirrors
// each one to the process log. It is the default audit sink; a guild
// that needs durable audit plugs in its own Logger.
type MemoryLog struct {
	mu      sync.RWMutex
	entries []Entry
	max     int
	logger  *log.Logger
}

func NewMemoryLog(max int, logger *log.Logger) *MemoryLog {
	if max <= 0 {
		max = 1000
	}
	if logger == nil {
		logger = log.Default()
	}
	return &MemoryLog{max: max, logger: logger}
}

func (l *MemoryLog) Record(e Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
	l.mu.Unlock()

	l.logger.Printf("audit: %s guild=%s quest=%s actor=%s", e.Action, e.GuildID, e.QuestID, e.ActorID)
}

// List returns entries for a guild, newest first.
func (l *MemoryLog) List(guildID string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, 0, len(l.entries))
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].GuildID == guildID {
			out = append(out, l.entries[i])
		}
	}
	return out
}

// Stats counts recorded entries per action.
func (l *MemoryLog) Stats() map[Action]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[Action]int)
	for _, e := range l.entries {
		out[e.Action]++
	}
	return out
}
