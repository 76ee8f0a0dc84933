package domain

import (
	"slices"
	"time"
)

// RoleUser is granted to every self-registered account.
const RoleUser = "USER"

// RoleInternal marks service tokens allowed onto the internal endpoints.
const RoleInternal = "INTERNAL"

type User struct {
	ID           string // ULID
	Username     string
	Email        string
	PasswordHash string   // argon2id PHC string
	Roles        []string // ordered, space-delimited in storage
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

func (u User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}
