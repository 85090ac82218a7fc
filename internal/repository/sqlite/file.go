package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/notecode/internal/apperror"
	"github.com/sakif/notecode/internal/model"
	"github.com/sakif/notecode/internal/repository"
)

// Compile-time check that *DB implements repository.FileRepository.
// If a method is missing or has the wrong signature, the compiler errors
// here instead of at some distant call site.
var _ repository.FileRepository = (*DB)(nil)

// Create inserts a new file. The ID (xid: 20 chars, URL-safe, sortable by
// creation time) and both timestamps are generated here; the caller's struct
// is updated in place through the pointer.
func (db *DB) Create(ctx context.Context, file *model.File) error {
	file.ID = xid.New().String()

	now := time.Now()
	file.CreatedAt = now
	file.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO files (id, name, user_id, language, code, algo, input, output, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		file.ID,
		file.Name,
		file.Owner,
		file.Language,
		file.Code,
		file.Algo,
		file.Input,
		file.Output,
		file.CreatedAt,
		file.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating file: %w", err)
	}

	return nil
}

// GetByID retrieves a single file by its ID, regardless of owner — the
// service layer does the ownership check so it can distinguish 404 from 403.
func (db *DB) GetByID(ctx context.Context, id string) (*model.File, error) {
	var f model.File

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, user_id, language, code, algo, input, output, created_at, updated_at
		 FROM files
		 WHERE id = ?`,
		id,
	).Scan(
		&f.ID,
		&f.Name,
		&f.Owner,
		&f.Language,
		&f.Code,
		&f.Algo,
		&f.Input,
		&f.Output,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		// sql.ErrNoRows is a sentinel — database/sql doesn't wrap it,
		// so == is the correct check. Translate it to our domain error.
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("file", id)
		}
		return nil, fmt.Errorf("sqlite: getting file %s: %w", id, err)
	}

	return &f, nil
}

// ListByOwner returns every file owned by ownerID, most recently updated
// first. Equal timestamps are broken by ID descending so the order is stable
// across calls.
func (db *DB) ListByOwner(ctx context.Context, ownerID string) ([]model.File, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, user_id, language, code, algo, input, output, created_at, updated_at
		 FROM files
		 WHERE user_id = ?
		 ORDER BY updated_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing files for user %s: %w", ownerID, err)
	}
	defer rows.Close()

	files := make([]model.File, 0, 16)

	for rows.Next() {
		var f model.File
		if err := rows.Scan(
			&f.ID, &f.Name, &f.Owner, &f.Language, &f.Code,
			&f.Algo, &f.Input, &f.Output, &f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning file row: %w", err)
		}
		files = append(files, f)
	}

	// rows.Err() catches failures that happened during iteration
	// (a dropped connection, for example).
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating files: %w", err)
	}

	return files, nil
}

// Update applies the patch's non-nil fields in a single guarded UPDATE and
// returns the row as written.
//
// The SET list is built from only the patched columns. A handler that read
// the file, decided to change the algo, and calls here does NOT write the
// code it read — so a code change committed by another request in the
// meantime is not reverted. The WHERE clause carries both id AND user_id:
// the statement is atomic in SQLite, so a file deleted between the
// service's ownership check and this write just affects zero rows and
// reports NotFound. Owner, id, and created_at are never in the SET list —
// they are immutable by construction.
func (db *DB) Update(ctx context.Context, id, ownerID string, patch repository.FileUpdate) (*model.File, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("sqlite: empty update for file %s", id)
	}

	assignments := make([]string, 0, 7)
	args := make([]any, 0, 9)
	set := func(column string, value *string) {
		if value != nil {
			assignments = append(assignments, column+" = ?")
			args = append(args, *value)
		}
	}
	set("name", patch.Name)
	set("language", patch.Language)
	set("code", patch.Code)
	set("algo", patch.Algo)
	set("input", patch.Input)
	set("output", patch.Output)

	assignments = append(assignments, "updated_at = ?")
	args = append(args, time.Now(), id, ownerID)

	result, err := db.conn.ExecContext(ctx,
		`UPDATE files SET `+strings.Join(assignments, ", ")+` WHERE id = ? AND user_id = ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating file %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apperror.NotFound("file", id)
	}

	return db.GetByID(ctx, id)
}

// Delete removes a file. Same owner guard as Update.
func (db *DB) Delete(ctx context.Context, id, ownerID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM files WHERE id = ? AND user_id = ?`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting file %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("file", id)
	}

	return nil
}
