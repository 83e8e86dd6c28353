package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv applies environment overrides on top of the loaded config.
// Unset variables leave the config untouched.
func FromEnv(c *Config) *Config {
	if v := strings.TrimSpace(os.Getenv("LEGION_ADDR")); v != "" {
		c.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("LEGION_DATA_DIR")); v != "" {
		c.Data.Dir = v
	}
	if v := getEnvInt("LEGION_LOCK_WAIT_MS"); v > 0 {
		c.Quests.LockWaitMS = v
	}
	if v := getEnvInt("LEGION_MENU_LIMIT"); v > 0 {
		c.Quests.MenuLimit = v
	}
	if v := getEnvInt("LEGION_AUDIT_MAX_ENTRIES"); v > 0 {
		c.Audit.MaxEntries = v
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LEGION_REOPEN_ON_CANCEL"))) {
	case "1", "true", "yes":
		c.Quests.ReopenOnCancel = true
	case "0", "false", "no":
		c.Quests.ReopenOnCancel = false
	}
	if v := strings.TrimSpace(os.Getenv("LEGION_MANAGER_ROLES")); v != "" {
		var roles []string
		for _, role := range strings.Split(v, ",") {
			if role = strings.TrimSpace(role); role != "" {
				roles = append(roles, role)
			}
		}
		c.Permissions.ManagerRoles = roles
	}
	return c
}

func getEnvInt(key string) int {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	num, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return num
}
