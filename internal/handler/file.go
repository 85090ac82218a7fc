package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/notecode/internal/apperror"
	"github.com/sakif/notecode/internal/auth"
	"github.com/sakif/notecode/internal/service"
)

// FileHandler exposes the CRUD endpoints for code files. Every route it
// serves is mounted behind RequireAuth, so the authenticated user is always
// on the request context; the handler's job is only to decode the request,
// hand it to the service with the caller's identity, and encode the result.
//
// Ownership decisions live in the service layer — the handler never compares
// user IDs itself.
type FileHandler struct {
	files  *service.FileService
	logger *slog.Logger
}

// NewFileHandler creates a FileHandler.
func NewFileHandler(files *service.FileService, logger *slog.Logger) *FileHandler {
	return &FileHandler{files: files, logger: logger}
}

// HandleTest confirms that the caller's token resolved to a real account.
//
// HTTP: GET /api/test
// Auth: Required
//
// It echoes the authenticated user back, which makes it the cheapest way to
// verify a bearer token from curl or a frontend health check.
func (h *FileHandler) HandleTest(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireAuth, but fail closed anyway.
		writeError(w, apperror.Unauthorized())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "authenticated",
		"user":    user,
	})
}

// HandleCreate stores a new file owned by the caller.
//
// HTTP: POST /api/files
// Auth: Required
// Body: {"name":"two-sum.py","language":"python","code":"...","algo":"...","input":"...","output":"..."}
//
// The owner is taken from the authenticated identity, never from the body —
// a request cannot create a file on someone else's behalf.
func (h *FileHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	var in service.CreateFileInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	file, err := h.files.Create(r.Context(), user.ID, in)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("file created",
		slog.String("fileID", file.ID),
		slog.String("owner", user.ID),
	)

	writeJSON(w, http.StatusCreated, file)
}

// HandleListByUser returns all files owned by the given user, newest first.
//
// HTTP: GET /api/files/user/{userId}
// Auth: Required
//
// The path segment must match the caller's own ID; asking for another
// user's list is a 403, not an empty list, so the mismatch is visible.
func (h *FileHandler) HandleListByUser(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	requestedOwner := chi.URLParam(r, "userId")

	files, err := h.files.ListByOwner(r.Context(), user.ID, requestedOwner)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, files)
}

// HandleGet returns a single file by ID.
//
// HTTP: GET /api/files/{id}
// Auth: Required (owner only)
func (h *FileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	file, err := h.files.GetByID(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, file)
}

// HandleUpdate applies a partial update to a file.
//
// HTTP: PATCH /api/files/{id}
// Auth: Required (owner only)
// Body: any subset of {"name","language","code","algo","input","output"}
//
// Fields absent from the body are left untouched. Fields outside that set
// are ignored by the decoder — UpdateFileInput simply has nowhere to put
// them, so "owner" or "createdAt" in a request body is a no-op.
func (h *FileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	var in service.UpdateFileInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	file, err := h.files.UpdatePartial(r.Context(), user.ID, chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, file)
}

// HandleUpdateCode replaces only the code of a file.
//
// HTTP: PATCH /api/files/{id}/code
// Auth: Required (owner only)
// Body: {"code": "print('hello')"}
func (h *FileHandler) HandleUpdateCode(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	file, err := h.files.UpdateCode(r.Context(), user.ID, chi.URLParam(r, "id"), body.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, file)
}

// HandleUpdateAlgo replaces only the algorithm notes of a file.
//
// HTTP: PATCH /api/files/{id}/algo
// Auth: Required (owner only)
// Body: {"algo": "two pointers from both ends"}
func (h *FileHandler) HandleUpdateAlgo(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	var body struct {
		Algo string `json:"algo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	file, err := h.files.UpdateAlgo(r.Context(), user.ID, chi.URLParam(r, "id"), body.Algo)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, file)
}

// HandleDelete removes a file permanently.
//
// HTTP: DELETE /api/files/{id}
// Auth: Required (owner only)
//
// Responds 200 with a confirmation message rather than 204 — callers display
// the message directly.
func (h *FileHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.files.Delete(r.Context(), user.ID, id); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("file deleted",
		slog.String("fileID", id),
		slog.String("owner", user.ID),
	)

	writeJSON(w, http.StatusOK, map[string]string{"message": "File deleted successfully"})
}
