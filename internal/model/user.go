// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Two login paths populate this struct:
//   - email/password signup: Email + PasswordHash are set, GitHubID is 0
//   - GitHub OAuth: GitHubID/Login/AvatarURL are set, PasswordHash is empty
//
// We generate our own internal string ID (xid) for consistency with File and
// to avoid tying primary keys to a third-party's numbering scheme.
//
// WHY PasswordHash WITH json:"-"?
// The hash must never leave the server. The `json:"-"` tag makes encoding/json
// skip the field entirely, so every handler that returns a User automatically
// returns the credential-free projection. There is no "oops, we serialized
// the hash" code path to guard against.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Email        string    `json:"email"     db:"email"` // unique; empty only for OAuth users who hid it
	Login        string    `json:"login"     db:"login"` // display name / GitHub username
	PasswordHash string    `json:"-"         db:"password_hash"`
	GitHubID     int64     `json:"githubId,omitempty"  db:"github_id"` // 0 unless the account came via OAuth
	AvatarURL    string    `json:"avatarUrl,omitempty" db:"avatar_url"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
