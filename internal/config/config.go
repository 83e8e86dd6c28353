package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server" json:"server"`
	Data        DataConfig        `yaml:"data" json:"data"`
	Quests      QuestsConfig      `yaml:"quests" json:"quests"`
	Permissions PermissionsConfig `yaml:"permissions" json:"permissions"`
	Audit       AuditConfig       `yaml:"audit" json:"audit"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

type DataConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

type QuestsConfig struct {
	// ReopenOnCancel reopens a closed (not archived) quest when a
	// cancellation frees headroom.
	ReopenOnCancel bool `yaml:"reopen_on_cancel" json:"reopen_on_cancel"`

	// LockWaitMS bounds how long a mutation waits for a quest's
	// serialization slot before reporting busy.
	LockWaitMS int `yaml:"lock_wait_ms" json:"lock_wait_ms"`

	// MenuLimit caps entries in selection menus (Discord allows 25).
	MenuLimit int `yaml:"menu_limit" json:"menu_limit"`
}

type PermissionsConfig struct {
	// ManagerRoles may archive or edit any quest, not just their own.
	ManagerRoles []string `yaml:"manager_roles" json:"manager_roles"`
}

type AuditConfig struct {
	// MaxEntries bounds the in-memory audit ring.
	MaxEntries int `yaml:"max_entries" json:"max_entries"`
}

func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8420"
	}
	if c.Data.Dir == "" {
		c.Data.Dir = "data"
	}
	if c.Quests.LockWaitMS <= 0 {
		c.Quests.LockWaitMS = 3000
	}
	if c.Quests.MenuLimit <= 0 {
		c.Quests.MenuLimit = 25
	}
	if c.Audit.MaxEntries <= 0 {
		c.Audit.MaxEntries = 1000
	}
}

func Default() *Config {
	var c Config
	c.ApplyDefaults()
	return &c
}

// Load reads the yaml config at path. A missing file yields defaults
// so the server runs without any config in place.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	return &c, nil
}
