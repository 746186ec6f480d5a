package model

import (
	"time"
)

type User struct {
	ID             string    `json:"id" bson:"_id"`
	Name           string    `json:"name" bson:"name"`
	Email          string    `json:"email" bson:"email"`
	HashedPassword string    `json:"-" bson:"password"` // Not exposed
	Phone          string    `json:"phone" bson:"phone"`
	IsAdmin        bool      `json:"isAdmin" bson:"isAdmin"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Sanitized returns a copy safe to attach to a request or serialize.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.HashedPassword = ""
	return &cp
}
