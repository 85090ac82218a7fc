package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/notecode/internal/apperror"
	"github.com/sakif/notecode/internal/auth"
	"github.com/sakif/notecode/internal/service"
)

// AuthHandler manages account creation and login.
//
// Two ways in:
//   - email + password (HandleRegister / HandleLogin)
//   - GitHub OAuth (HandleGitHubLogin / HandleGitHubCallback)
//
// Both paths end the same way: a JWT access token the client sends back as
// "Authorization: Bearer <token>" on every API call. The server keeps no
// session state, so there is nothing to tear down on logout — HandleLogout
// exists only so clients have a uniform endpoint to call when discarding
// their token.
type AuthHandler struct {
	authSvc *service.AuthService
	github  *auth.GitHubProvider // nil when GitHub login is not configured
	// Where the browser lands after a successful OAuth login. The token is
	// appended as a query parameter for the frontend to pick up and store.
	redirectURL string
	logger      *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be nil; the OAuth routes
// then respond 404.
func NewAuthHandler(
	authSvc *service.AuthService,
	github *auth.GitHubProvider,
	redirectURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		authSvc:     authSvc,
		github:      github,
		redirectURL: redirectURL,
		logger:      logger,
	}
}

// credentialsBody is the request shape shared by register and login.
type credentialsBody struct {
	Email    string `json:"email"`
	Login    string `json:"login"`
	Password string `json:"password"`
}

// authResponse is the success shape shared by register and login.
type authResponse struct {
	User  interface{} `json:"user"`
	Token string      `json:"token"`
}

// HandleRegister creates a new account and logs it in.
//
// HTTP: POST /auth/register
// Body: {"email":"a@b.c","login":"alice","password":"at least 8 chars"}
//
// Responds 201 with the new user and a token, 409 if the email is taken.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	result, err := h.authSvc.Register(r.Context(), body.Email, body.Login, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("user registered",
		slog.String("userID", result.User.ID),
		slog.String("login", result.User.Login),
	)

	writeJSON(w, http.StatusCreated, authResponse{User: result.User, Token: result.Token})
}

// HandleLogin verifies credentials and issues a fresh token.
//
// HTTP: POST /auth/login
// Body: {"email":"a@b.c","password":"..."}
//
// Wrong password and unknown email both produce the same 401 — the response
// never reveals which half of the credentials was bad.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	result, err := h.authSvc.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{User: result.User, Token: result.Token})
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// A random state value goes into a short-lived HttpOnly cookie; the callback
// rejects any response whose state doesn't match it. That ties the callback
// to a login this server actually started.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // long enough to approve, short enough to limit replay
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// Flow: verify state, exchange the code for a GitHub profile, upsert the
// account, issue a token, and hand the token to the frontend via the
// redirect URL. Clients not driven by a browser can omit the redirect URL
// in config and receive the token as JSON instead.
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch",
			slog.String("got", r.URL.Query().Get("state")),
		)
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// GitHub reports "the user clicked deny" as an error parameter, not a code.
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("error", errParam),
		)
		http.Redirect(w, r, h.redirectURL+"?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	result, err := h.authSvc.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: login failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	h.logger.Info("user authenticated via GitHub",
		slog.String("userID", result.User.ID),
		slog.String("login", result.User.Login),
	)

	if h.redirectURL == "" {
		writeJSON(w, http.StatusOK, authResponse{User: result.User, Token: result.Token})
		return
	}

	http.Redirect(w, r, h.redirectURL+"?token="+result.Token, http.StatusSeeOther)
}

// HandleLogout acknowledges a logout.
//
// HTTP: POST /auth/logout
//
// Tokens are stateless, so the server has nothing to invalidate; the client
// discards its copy and the token dies at expiry.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /api/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	writeJSON(w, http.StatusOK, user)
}
