package ops

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/star-discord/legion-kanri-bot/internal/model"
	"github.com/star-discord/legion-kanri-bot/internal/quest"
)

// GuildSummary is one guild's line in the inspect output.
type GuildSummary struct {
	GuildID   string
	Quests    int
	Open      int
	Closed    int
	Archived  int
	Committed int
	Capacity  int
}

// questsFile mirrors the store's on-disk shape; inspect reads the file
// directly so it works on backups without going through the server.
type questsFile struct {
	Guilds map[string]struct {
		Quests map[string]model.Quest `json:"quests"`
	} `json:"guilds"`
}

// InspectDataDir summarizes quest state per guild from the data
// directory, sorted by guild id.
func InspectDataDir(dataDir string) ([]GuildSummary, error) {
	b, err := os.ReadFile(filepath.Join(dataDir, "quests.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var f questsFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}

	out := make([]GuildSummary, 0, len(f.Guilds))
	for gid, gs := range f.Guilds {
		s := GuildSummary{GuildID: gid}
		for _, q := range gs.Quests {
			s.Quests++
			switch q.Status() {
			case model.QuestArchived:
				s.Archived++
			case model.QuestClosed:
				s.Closed++
			default:
				s.Open++
			}
			s.Committed += quest.RemainingSlots(q).Committed
			s.Capacity += q.People
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuildID < out[j].GuildID })
	return out, nil
}
