// Package service contains the business logic layer of the application.
//
// The three layers:
//
//	Handler (HTTP)      → parses requests, writes responses
//	Service (business)  → validates, enforces ownership, orchestrates
//	Repository (data)   → reads/writes the database
//
// The service receives repository interfaces (not concrete sqlite types), so
// tests inject in-memory mocks and the service stays HTTP- and SQL-agnostic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/notecode/internal/apperror"
	"github.com/sakif/notecode/internal/model"
	"github.com/sakif/notecode/internal/repository"
)

// Validation limits for file fields.
const (
	MaxFileNameLength = 100
	MaxCodeLength     = 100000 // ~100KB of code
)

// FileService handles business logic for code files, most importantly the
// ownership invariant: a file is readable, writable, and deletable only by
// the identity recorded as its owner.
//
// Every operation takes the caller's owner ID (the authenticated user's ID,
// extracted by the middleware) as an explicit parameter. The service never
// trusts an owner value arriving in a request body.
type FileService struct {
	repo   repository.FileRepository
	logger *slog.Logger
}

// NewFileService creates a FileService. The caller decides which repository
// implementation to inject (sqlite in production, a mock in tests).
func NewFileService(repo repository.FileRepository, logger *slog.Logger) *FileService {
	return &FileService{
		repo:   repo,
		logger: logger,
	}
}

// CreateFileInput carries the caller-suppliable fields for Create. Owner is
// deliberately absent — it always comes from the authenticated identity.
type CreateFileInput struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Code     string `json:"code"`
	Algo     string `json:"algo"`
	Input    string `json:"input"`
	Output   string `json:"output"`
}

// UpdateFileInput is the patch shape for UpdatePartial. Pointer fields
// distinguish "not provided" (nil) from "set to empty" — and the struct
// itself is the allow-list: owner, id, and timestamps have no field here,
// so no request body can ever touch them.
type UpdateFileInput struct {
	Name     *string `json:"name"`
	Language *string `json:"language"`
	Code     *string `json:"code"`
	Algo     *string `json:"algo"`
	Input    *string `json:"input"`
	Output   *string `json:"output"`
}

func (in UpdateFileInput) empty() bool {
	return in.Name == nil && in.Language == nil && in.Code == nil &&
		in.Algo == nil && in.Input == nil && in.Output == nil
}

// Create validates and saves a new file owned by ownerID.
// Name, language and code are required; algo/input/output default to "".
func (s *FileService) Create(ctx context.Context, ownerID string, in CreateFileInput) (*model.File, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Language = strings.TrimSpace(in.Language)

	if in.Name == "" {
		return nil, apperror.ValidationFailed("name", "file name is required")
	}
	if len(in.Name) > MaxFileNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("file name must be %d characters or less", MaxFileNameLength))
	}
	if in.Language == "" {
		return nil, apperror.ValidationFailed("language", "language is required")
	}
	if in.Code == "" {
		return nil, apperror.ValidationFailed("code", "code is required")
	}
	if len(in.Code) > MaxCodeLength {
		return nil, apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}

	file := &model.File{
		Name:     in.Name,
		Owner:    ownerID,
		Language: in.Language,
		Code:     in.Code,
		Algo:     in.Algo,
		Input:    in.Input,
		Output:   in.Output,
	}

	// The repository fills in ID and timestamps.
	if err := s.repo.Create(ctx, file); err != nil {
		s.logger.Error("failed to create file",
			slog.String("name", in.Name),
			slog.String("owner", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating file: %w", err)
	}

	s.logger.Info("file created",
		slog.String("id", file.ID),
		slog.String("name", file.Name),
		slog.String("owner", file.Owner),
	)

	return file, nil
}

// ListByOwner returns the files owned by requestedOwnerID, newest update
// first. Callers may only list their own files: requesting another user's
// list is Forbidden regardless of whether that user exists or has files.
func (s *FileService) ListByOwner(ctx context.Context, ownerID, requestedOwnerID string) ([]model.File, error) {
	if requestedOwnerID != ownerID {
		return nil, apperror.Forbidden("not authorized to access these files")
	}

	files, err := s.repo.ListByOwner(ctx, requestedOwnerID)
	if err != nil {
		s.logger.Error("failed to list files",
			slog.String("owner", requestedOwnerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing files: %w", err)
	}

	return files, nil
}

// GetByID fetches a single file.
//
// CHECK ORDER — EXISTENCE BEFORE OWNERSHIP:
// A missing file is always NotFound, even for a caller who wouldn't own it
// if it existed; Forbidden is returned only for files that do exist. Doing
// it the other way round would let anyone probe which IDs exist.
func (s *FileService) GetByID(ctx context.Context, ownerID, id string) (*model.File, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "file ID is required")
	}

	file, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if file.Owner != ownerID {
		return nil, apperror.Forbidden("not authorized to access this file")
	}

	return file, nil
}

// UpdatePartial applies the provided fields to the file. An entirely empty
// patch is a ValidationError. Existence and ownership are checked exactly
// as in GetByID, then the patch is handed to the repository whole: only the
// provided columns are written, so a field another request changed
// concurrently is never clobbered with the stale value this request read.
func (s *FileService) UpdatePartial(ctx context.Context, ownerID, id string, in UpdateFileInput) (*model.File, error) {
	if in.empty() {
		return nil, apperror.ValidationFailed("", "no updates provided")
	}

	patch := repository.FileUpdate{
		Algo:   in.Algo,
		Input:  in.Input,
		Output: in.Output,
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperror.ValidationFailed("name", "file name must not be empty")
		}
		if len(name) > MaxFileNameLength {
			return nil, apperror.ValidationFailed("name",
				fmt.Sprintf("file name must be %d characters or less", MaxFileNameLength))
		}
		patch.Name = &name
	}
	if in.Language != nil {
		language := strings.TrimSpace(*in.Language)
		if language == "" {
			return nil, apperror.ValidationFailed("language", "language must not be empty")
		}
		patch.Language = &language
	}
	if in.Code != nil {
		if *in.Code == "" {
			return nil, apperror.ValidationFailed("code", "code must not be empty")
		}
		if len(*in.Code) > MaxCodeLength {
			return nil, apperror.ValidationFailed("code",
				fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
		}
		patch.Code = in.Code
	}

	if _, err := s.GetByID(ctx, ownerID, id); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, strings.TrimSpace(id), ownerID, patch)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Deleted between the ownership check and the write.
			return nil, err
		}
		s.logger.Error("failed to update file",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating file: %w", err)
	}

	s.logger.Info("file updated", slog.String("id", updated.ID))

	return updated, nil
}

// UpdateCode replaces only the code field, refreshing updatedAt.
func (s *FileService) UpdateCode(ctx context.Context, ownerID, id, code string) (*model.File, error) {
	if code == "" {
		return nil, apperror.ValidationFailed("code", "code is required")
	}
	return s.UpdatePartial(ctx, ownerID, id, UpdateFileInput{Code: &code})
}

// UpdateAlgo replaces only the algorithm description. An empty algo is
// rejected here (the field-specific endpoint is for writing a description,
// not clearing it); UpdatePartial can still set algo to "".
func (s *FileService) UpdateAlgo(ctx context.Context, ownerID, id, algo string) (*model.File, error) {
	if algo == "" {
		return nil, apperror.ValidationFailed("algo", "algo is required")
	}
	return s.UpdatePartial(ctx, ownerID, id, UpdateFileInput{Algo: &algo})
}

// Delete removes a file permanently. Same existence-then-ownership order as
// GetByID.
func (s *FileService) Delete(ctx context.Context, ownerID, id string) error {
	// GetByID gives us the 404-vs-403 distinction; the repository's
	// guarded DELETE makes the removal itself race-safe.
	if _, err := s.GetByID(ctx, ownerID, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		return err
	}

	s.logger.Info("file deleted", slog.String("id", id), slog.String("owner", ownerID))
	return nil
}
