package store

import "guest-visits-backend/internal/model"

// EntryView is an entry joined with the status of its current pass.
type EntryView struct {
	model.Entry
	PassStatus *string `json:"pass_status"`
}

// RoleGrants is a role together with the permission codes it grants.
type RoleGrants struct {
	Role  model.Role
	Codes []string
}
