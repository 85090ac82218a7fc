package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/notecode/internal/apperror"
	"github.com/sakif/notecode/internal/auth"
	"github.com/sakif/notecode/internal/executor"
	"github.com/sakif/notecode/internal/service"
)

// RunHandler executes a stored file inside the Docker sandbox.
//
// Fetching goes through FileService, so the usual existence and ownership
// checks apply before anything runs: a non-owner gets the same 404/403 they
// would get from GET /api/files/{id}.
type RunHandler struct {
	files  *service.FileService
	exec   executor.Executor
	logger *slog.Logger
}

// NewRunHandler creates a RunHandler.
func NewRunHandler(files *service.FileService, exec executor.Executor, logger *slog.Logger) *RunHandler {
	return &RunHandler{files: files, exec: exec, logger: logger}
}

// HandleRun runs a file's code with its stored sample input on stdin.
//
// HTTP: POST /api/files/{id}/run
// Auth: Required (owner only)
//
// On success the captured stdout is persisted back into the file's output
// field, so the next GET shows the latest run result. A run that produced
// no stdout (or a failed run) leaves the stored output alone.
func (h *RunHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
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

	// Only Python images are provisioned in the sandbox pool.
	if file.Language != "python" {
		writeError(w, apperror.ValidationFailed("language", "only python files can be executed"))
		return
	}

	result, err := h.exec.Execute(r.Context(), executor.ExecutionRequest{
		Code:  file.Code,
		Stdin: file.Input,
	})
	if err != nil {
		h.logger.Error("execution failed",
			slog.String("fileID", file.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	h.logger.Info("file executed",
		slog.String("fileID", file.ID),
		slog.String("owner", user.ID),
		slog.Int("exitCode", result.ExitCode),
		slog.Duration("duration", result.Duration),
	)

	if result.ExitCode == 0 && result.Stdout != "" {
		out := result.Stdout
		if _, err := h.files.UpdatePartial(r.Context(), user.ID, file.ID, service.UpdateFileInput{
			Output: &out,
		}); err != nil {
			// The run itself succeeded; report it even if persisting the
			// output failed.
			h.logger.Error("failed to store run output",
				slog.String("fileID", file.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	writeJSON(w, http.StatusOK, result)
}
