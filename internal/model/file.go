// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// File represents a saved code file: the code itself plus the metadata a
// student keeps alongside it (language, algorithm notes, sample input/output).
//
// The `json:"..."` tags tell Go's encoding/json package how to serialize
// this struct. The Owner field maps to "owner" in JSON but is never read
// FROM a request body — it is always set from the authenticated identity.
// The db tags document the column mapping in the sqlite repository.
type File struct {
	ID        string    `json:"id"        db:"id"`
	Name      string    `json:"name"      db:"name"`
	Owner     string    `json:"owner"     db:"user_id"` // User.ID of the creator; immutable
	Language  string    `json:"language"  db:"language"` // e.g. "python" — the snippet's language
	Code      string    `json:"code"      db:"code"`
	Algo      string    `json:"algo"      db:"algo"`   // free-form algorithm description
	Input     string    `json:"input"     db:"input"`  // sample stdin for the snippet
	Output    string    `json:"output"    db:"output"` // expected/captured stdout
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
