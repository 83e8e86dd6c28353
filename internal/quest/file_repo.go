package quest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/star-discord/legion-kanri-bot/internal/model"
)

type fileState struct {
	Guilds map[string]guildState `json:"guilds"`
}

type guildState struct {
	Quests map[string]model.Quest `json:"quests"`
}

func newFileState() fileState {
	return fileState{Guilds: map[string]guildState{}}
}

// FileRepo is the persistent Store. All quests live in one JSON file
// keyed by guild; the in-memory state is the cache of record and every
// committed mutation is written through to disk before it is returned.
type FileRepo struct {
	mu       sync.RWMutex
	path     string
	s        fileState
	keys     *keyedMutex
	lockWait time.Duration
}

func NewFileRepo(dataDir string) (*FileRepo, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	r := &FileRepo{
		path:     filepath.Join(dataDir, "quests.json"),
		s:        newFileState(),
		keys:     newKeyedMutex(),
		lockWait: DefaultLockWait,
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// SetLockWait overrides the serialization wait bound. Zero keeps the default.
func (r *FileRepo) SetLockWait(d time.Duration) {
	if d > 0 {
		r.lockWait = d
	}
}

func (r *FileRepo) load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			r.s = newFileState()
			return nil
		}
		return err
	}

	var loaded fileState
	if err := json.Unmarshal(b, &loaded); err != nil {
		return err
	}
	if loaded.Guilds == nil {
		loaded.Guilds = map[string]guildState{}
	}
	for gid, gs := range loaded.Guilds {
		if gs.Quests == nil {
			gs.Quests = map[string]model.Quest{}
			loaded.Guilds[gid] = gs
		}
	}
	r.s = loaded
	return nil
}

func (r *FileRepo) saveLocked() error {
	b, err := json.MarshalIndent(r.s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, b, 0o644)
}

func (r *FileRepo) guildLocked(guildID string) guildState {
	gs, ok := r.s.Guilds[guildID]
	if !ok {
		gs = guildState{Quests: map[string]model.Quest{}}
		r.s.Guilds[guildID] = gs
	}
	if gs.Quests == nil {
		gs.Quests = map[string]model.Quest{}
		r.s.Guilds[guildID] = gs
	}
	return gs
}

func (r *FileRepo) Create(ctx context.Context, q model.Quest) (model.Quest, error) {
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

	gs := r.guildLocked(q.GuildID)
	gs.Quests[q.ID] = q.Clone()
	if err := r.saveLocked(); err != nil {
		return model.Quest{}, err
	}
	return q, nil
}

func (r *FileRepo) Get(ctx context.Context, guildID, questID string) (model.Quest, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	gs, ok := r.s.Guilds[guildID]
	if !ok || gs.Quests == nil {
		return model.Quest{}, ErrNotFound
	}
	q, ok := gs.Quests[questID]
	if !ok {
		return model.Quest{}, ErrNotFound
	}
	return q.Clone(), nil
}

func (r *FileRepo) List(ctx context.Context, guildID string, filter ListFilter) ([]model.Quest, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	gs := r.s.Guilds[guildID]
	out := make([]model.Quest, 0, len(gs.Quests))
	for _, q := range gs.Quests {
		if matchesFilter(q, filter) {
			out = append(out, q.Clone())
		}
	}
	sortQuests(out)
	return out, nil
}

func (r *FileRepo) ListActiveByUser(ctx context.Context, guildID, userID string) ([]model.Quest, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Quest
	for _, q := range r.s.Guilds[guildID].Quests {
		if _, ok := q.ActiveAcceptanceBy(userID); ok {
			out = append(out, q.Clone())
		}
	}
	sortQuests(out)
	return out, nil
}

func (r *FileRepo) ConditionalUpdate(ctx context.Context, guildID, questID string,
	check func(model.Quest) error,
	mutate func(*model.Quest) error) (model.Quest, error) {

	key := questKey(guildID, questID)
	if err := r.keys.acquire(ctx, key, r.lockWait); err != nil {
		return model.Quest{}, err
	}
	defer r.keys.release(key)

	r.mu.RLock()
	current, ok := r.s.Guilds[guildID].Quests[questID]
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
	defer r.mu.Unlock()

	gs := r.guildLocked(guildID)
	gs.Quests[questID] = next.Clone()
	if err := r.saveLocked(); err != nil {
		return model.Quest{}, err
	}
	return next, nil
}
