package quest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/star-discord/legion-kanri-bot/internal/model"
)

// DefaultLockWait bounds how long a conditional update waits for its
// key's serialization slot before giving up with ErrBusy.
const DefaultLockWait = 3 * time.Second

// MemoryRepo is an in-memory Store, used in tests and as the reference
// for the conditional-update semantics the file repo mirrors.
type MemoryRepo struct {
	mu       sync.RWMutex
	guilds   map[string]map[string]model.Quest
	keys     *keyedMutex
	lockWait time.Duration
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		guilds:   make(map[string]map[string]model.Quest),
		keys:     newKeyedMutex(),
		lockWait: DefaultLockWait,
	}
}

// SetLockWait overrides the serialization wait bound. Zero keeps the default.
func (r *MemoryRepo) SetLockWait(d time.Duration) {
	if d > 0 {
		r.lockWait = d
	}
}

func questKey(guildID, questID string) string {
	return guildID + "/" + questID
}

func normalizeQuest(q *model.Quest) error {
	q.Title = strings.TrimSpace(q.Title)
	if q.People < 1 {
		return ErrInvalidCapacity
	}
	return nil
}

func (r *MemoryRepo) Create(ctx context.Context, q model.Quest) (model.Quest, error) {
	_ = ctx

	if err := normalizeQuest(&q); err != nil {
		return model.Quest{}, err
	}

	now := time.Now()
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	q.CreatedAt = now
	q.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.guilds[q.GuildID]
	if !ok {
		g = make(map[string]model.Quest)
		r.guilds[q.GuildID] = g
	}
	g[q.ID] = q.Clone()
	return q, nil
}

func (r *MemoryRepo) Get(ctx context.Context, guildID, questID string) (model.Quest, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	q, ok := r.guilds[guildID][questID]
	if !ok {
		return model.Quest{}, ErrNotFound
	}
	return q.Clone(), nil
}

func (r *MemoryRepo) List(ctx context.Context, guildID string, filter ListFilter) ([]model.Quest, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Quest, 0, len(r.guilds[guildID]))
	for _, q := range r.guilds[guildID] {
		if matchesFilter(q, filter) {
			out = append(out, q.Clone())
		}
	}
	sortQuests(out)
	return out, nil
}

func (r *MemoryRepo) ListActiveByUser(ctx context.Context, guildID, userID string) ([]model.Quest, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Quest
	for _, q := range r.guilds[guildID] {
		if _, ok := q.ActiveAcceptanceBy(userID); ok {
			out = append(out, q.Clone())
		}
	}
	sortQuests(out)
	return out, nil
}

func (r *MemoryRepo) ConditionalUpdate(ctx context.Context, guildID, questID string,
	check func(model.Quest) error,
	mutate func(*model.Quest) error) (model.Quest, error) {

	key := questKey(guildID, questID)
	if err := r.keys.acquire(ctx, key, r.lockWait); err != nil {
		return model.Quest{}, err
	}
	defer r.keys.release(key)

	r.mu.RLock()
	current, ok := r.guilds[guildID][questID]
	r.mu.RUnlock()
	if !ok {
		return model.Quest{}, ErrNotFound
	}

	if check != nil {
		if err := check(current.Clone()); err != nil {
			return model.Quest{}, err
		}
	}

	next := current.Clone()
	if err := mutate(&next); err != nil {
		return model.Quest{}, err
	}
	next.UpdatedAt = time.Now()

	r.mu.Lock()
	r.guilds[guildID][questID] = next.Clone()
	r.mu.Unlock()

	return next, nil
}

// sortQuests orders by creation time, oldest first; stable for UI and tests.
func sortQuests(qs []model.Quest) {
	sort.Slice(qs, func(i, j int) bool {
		if qs[i].CreatedAt.Equal(qs[j].CreatedAt) {
			return qs[i].ID < qs[j].ID
		}
		return qs[i].CreatedAt.Before(qs[j].CreatedAt)
	})
}
