package models

import (
	"slices"
	"time"
)

const RoleAdmin = "admin"

// User is owned by the authentication service; this module only reads it
// to address notifications and label bookings.
type User struct {
	ID                string    `json:"id" bson:"_id"`
	Username          string    `json:"username" bson:"username"`
	Email             string    `json:"email" bson:"email"`
	GoogleDisplayName string    `json:"googleDisplayName,omitempty" bson:"googleDisplayName,omitempty"`
	Role              []string  `json:"role" bson:"role"`
	CreatedAt         time.Time `json:"createdAt" bson:"createdAt"`
}

func (u User) DisplayName() string {
	switch {
	case u.Username != "":
		return u.Username
	case u.GoogleDisplayName != "":
		return u.GoogleDisplayName
	default:
		return u.Email
	}
}

func (u User) IsAdmin() bool {
	return slices.Contains(u.Role, RoleAdmin)
}
