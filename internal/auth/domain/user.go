package domain

import (
	"fmt"
	"time"
)

// Role is the closed set of account kinds. It is fixed at registration.
type Role string

const (
	RoleUser     Role = "user"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

// ParseRole accepts only the known roles.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleProvider, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// SelfRegistrable reports whether a caller may pick this role at sign-up.
// Admins are provisioned out of band.
func (r Role) SelfRegistrable() bool {
	return r == RoleUser || r == RoleProvider
}

func (r Role) String() string { return string(r) }

type User struct {
	ID           string
	Email        string // stored lowercased
	PasswordHash string // bcrypt or argon2id encoded
	Role         Role
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}
