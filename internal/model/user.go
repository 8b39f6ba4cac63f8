// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered community member.
//
// ID is the canonical owner identifier: every listing stores the numeric ID
// of its creator, and every ownership check compares against it.
//
// WHY PasswordHash HAS json:"-"?
// The hash must never leave the server. The "-" tag makes encoding/json skip
// the field entirely, so handlers can return a *User without scrubbing it.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Nickname     string    `json:"nickname"`
	PasswordHash string    `json:"-"`
	GitHubID     int64     `json:"githubId,omitempty"` // set only for GitHub sign-ins
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
