// Package permission resolves who may edit a quest. The rules mirror
// the bot's behavior: the quest creator always can, and so can anyone
// holding one of the configured manager roles.
package permission

import "github.com/star-discord/legion-kanri-bot/internal/model"

// Resolver answers edit-permission questions for quests.
type Resolver interface {
	CanEditQuest(actor model.Actor, q model.Quest) bool
}

// RoleResolver permits the creator and configured manager roles.
type RoleResolver struct {
	ManagerRoles []string
}

func NewRoleResolver(managerRoles []string) *RoleResolver {
	return &RoleResolver{ManagerRoles: managerRoles}
}

func (r *RoleResolver) CanEditQuest(actor model.Actor, q model.Quest) bool {
	if actor.ID == "" {
		return false
	}
	if actor.ID == q.CreatedBy {
		return true
	}
	for _, role := range r.ManagerRoles {
		if actor.HasRole(role) {
			return true
		}
	}
	return false
}
