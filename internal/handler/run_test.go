package handler_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/notecode/internal/auth"
	"github.com/sakif/notecode/internal/executor"
	"github.com/sakif/notecode/internal/handler"
	"github.com/sakif/notecode/internal/model"
	"github.com/sakif/notecode/internal/repository/sqlite"
	"github.com/sakif/notecode/internal/service"
)

// MockExecutor records the request and returns a canned result, so run
// handler tests don't need Docker.
type MockExecutor struct {
	CapturedReq executor.ExecutionRequest
	ReturnRes   *executor.ExecutionResult
	ReturnErr   error
}

func (m *MockExecutor) Execute(_ context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	m.CapturedReq = req
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return m.ReturnRes, nil
}

type runAPI struct {
	db      *sqlite.DB
	exec    *MockExecutor
	router  *chi.Mux
	fileSvc *service.FileService
}

func newRunAPI(t *testing.T) *runAPI {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	fileSvc := service.NewFileService(db, logger)
	mockExec := &MockExecutor{
		ReturnRes: &executor.ExecutionResult{
			Stdout:   "42\n",
			ExitCode: 0,
			Duration: 100 * time.Millisecond,
		},
	}

	runHandler := handler.NewRunHandler(fileSvc, mockExec, logger)
	fileHandler := handler.NewFileHandler(fileSvc, logger)

	a := &runAPI{db: db, exec: mockExec, fileSvc: fileSvc}

	r := chi.NewRouter()
	r.Post("/api/files/{id}/run", runHandler.HandleRun)
	r.Get("/api/files/{id}", fileHandler.HandleGet)
	a.router = r

	return a
}

func (a *runAPI) do(user *model.User, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(""))
	req = req.WithContext(auth.ContextWithUser(req.Context(), user))
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func (a *runAPI) newUser(t *testing.T, email string) *model.User {
	t.Helper()
	user := &model.User{Email: email, Login: strings.Split(email, "@")[0]}
	require.NoError(t, a.db.CreateUser(context.Background(), user))
	return user
}

func (a *runAPI) newFile(t *testing.T, owner *model.User, language, code, input string) *model.File {
	t.Helper()
	file, err := a.fileSvc.Create(context.Background(), owner.ID, service.CreateFileInput{
		Name:     "run-me.py",
		Language: language,
		Code:     code,
		Input:    input,
	})
	require.NoError(t, err)
	return file
}

func TestRunHandler_HandleRun(t *testing.T) {
	t.Run("runs code with stored input on stdin", func(t *testing.T) {
		api := newRunAPI(t)
		alice := api.newUser(t, "alice@example.com")
		file := api.newFile(t, alice, "python", "print(int(input())*2)", "21")

		rr := api.do(alice, http.MethodPost, "/api/files/"+file.ID+"/run")

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, file.Code, api.exec.CapturedReq.Code)
		assert.Equal(t, "21", api.exec.CapturedReq.Stdin)

		var res executor.ExecutionResult
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, "42\n", res.Stdout)
		assert.Equal(t, 0, res.ExitCode)
	})

	t.Run("stdout is persisted into the file's output", func(t *testing.T) {
		api := newRunAPI(t)
		alice := api.newUser(t, "alice@example.com")
		file := api.newFile(t, alice, "python", "print(42)", "")

		rr := api.do(alice, http.MethodPost, "/api/files/"+file.ID+"/run")
		require.Equal(t, http.StatusOK, rr.Code)

		rr = api.do(alice, http.MethodGet, "/api/files/"+file.ID)
		require.Equal(t, http.StatusOK, rr.Code)

		var got model.File
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		assert.Equal(t, "42\n", got.Output)
	})

	t.Run("non-python file is rejected before execution", func(t *testing.T) {
		api := newRunAPI(t)
		alice := api.newUser(t, "alice@example.com")
		file := api.newFile(t, alice, "javascript", "console.log(42)", "")

		rr := api.do(alice, http.MethodPost, "/api/files/"+file.ID+"/run")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, api.exec.CapturedReq.Code, "executor must not be called")
	})

	t.Run("non-owner cannot run the file", func(t *testing.T) {
		api := newRunAPI(t)
		alice := api.newUser(t, "alice@example.com")
		bob := api.newUser(t, "bob@example.com")
		file := api.newFile(t, alice, "python", "print(42)", "")

		rr := api.do(bob, http.MethodPost, "/api/files/"+file.ID+"/run")

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Empty(t, api.exec.CapturedReq.Code, "executor must not be called")
	})

	t.Run("failed run does not overwrite stored output", func(t *testing.T) {
		api := newRunAPI(t)
		alice := api.newUser(t, "alice@example.com")
		file := api.newFile(t, alice, "python", "boom(", "")

		// Seed an output from a previous good run.
		_, err := api.fileSvc.UpdatePartial(context.Background(), alice.ID, file.ID,
			service.UpdateFileInput{Output: strPtr("previous")})
		require.NoError(t, err)

		api.exec.ReturnRes = &executor.ExecutionResult{
			Stderr:   "SyntaxError",
			ExitCode: 1,
		}

		rr := api.do(alice, http.MethodPost, "/api/files/"+file.ID+"/run")
		require.Equal(t, http.StatusOK, rr.Code)

		rr = api.do(alice, http.MethodGet, "/api/files/"+file.ID)
		var got model.File
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		assert.Equal(t, "previous", got.Output)
	})
}

func strPtr(s string) *string { return &s }
