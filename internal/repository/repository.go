// Package repository declares the persistence interfaces the service layer
// programs against. Concrete implementations live in subpackages (sqlite).
package repository

import (
	"context"

	"github.com/sakif/notecode/internal/model"
)

// FileUpdate names the columns a partial update may change. A nil field is
// left untouched in the row. Because the repository builds the SET list from
// only the non-nil fields, a patch never writes back values it did not
// carry: a change committed by another request to an unpatched column
// survives, there is no read-modify-write window to lose it in.
type FileUpdate struct {
	Name     *string
	Language *string
	Code     *string
	Algo     *string
	Input    *string
	Output   *string
}

// Empty reports whether the patch carries no fields at all.
func (u FileUpdate) Empty() bool {
	return u.Name == nil && u.Language == nil && u.Code == nil &&
		u.Algo == nil && u.Input == nil && u.Output == nil
}

// FileRepository stores and retrieves code files.
//
// OWNERSHIP GUARDS:
// Update and Delete take the owner ID alongside the file ID and apply it in
// the WHERE clause of a single statement. SQLite executes each statement
// atomically, so the service's check-then-write sequence can never modify a
// row whose owner changed (it can't) or that was deleted between the check
// and the write — the guarded statement simply affects zero rows.
type FileRepository interface {
	Create(ctx context.Context, file *model.File) error
	GetByID(ctx context.Context, id string) (*model.File, error)
	// ListByOwner returns all files owned by ownerID, most recently
	// updated first (ties broken by ID, newest first).
	ListByOwner(ctx context.Context, ownerID string) ([]model.File, error)
	// Update applies the patch's non-nil fields to the file in one
	// guarded statement, refreshes updated_at, and returns the row as
	// written. Returns apperror.ErrNotFound if the guarded statement
	// affected no rows.
	Update(ctx context.Context, id, ownerID string, patch FileUpdate) (*model.File, error)
	// Delete removes the file, guarded by WHERE id AND owner.
	Delete(ctx context.Context, id, ownerID string) error
}

// UserRepository stores and retrieves user accounts.
//
// Method names carry the User prefix because the sqlite implementation
// shares a receiver with FileRepository.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// UpsertGitHubUser inserts a user on first OAuth login and refreshes
	// the profile fields on subsequent logins, keyed by GitHub ID.
	UpsertGitHubUser(ctx context.Context, user *model.User) error
}
