package model

import "slices"

// Actor identifies who is performing a mutation. The upstream gateway
// (the Discord-facing frontend) resolves identity and roles before
// calling into this service.
type Actor struct {
	ID    string   `json:"id"`
	Tag   string   `json:"tag,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

func (a Actor) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}
