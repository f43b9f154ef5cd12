package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/csrf"

	"newsroom/internal/adapters/http/middleware"
	"newsroom/internal/application/listutil"
	"newsroom/internal/application/orchestrators"
	"newsroom/internal/application/projections"
)

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response_encode_failed", "error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// internalError logs the real error and returns a fixed message.
func internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	slog.Error("internal_error", "error", err.Error(), "method", r.Method, "path", r.URL.Path)
	writeError(w, http.StatusInternalServerError, msg)
}

// failure names the fixed messages one endpoint answers with.
type failure struct {
	internal string
	notFound string
}

// respondError maps the orchestrator error taxonomy onto status codes.
// Anything outside the taxonomy is a 500 with f.internal.
func respondError(w http.ResponseWriter, r *http.Request, err error, f failure) {
	var ve *orchestrators.ValidationError
	switch {
	case errors.Is(err, orchestrators.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, orchestrators.ErrConflict):
		writeError(w, http.StatusBadRequest, orchestrators.ConflictMessage(err))
	case errors.Is(err, orchestrators.ErrNotFound):
		msg := f.notFound
		if msg == "" {
			msg = "Not found"
		}
		writeError(w, http.StatusNotFound, msg)
	default:
		internalError(w, r, err, f.internal)
	}
}

const maxBodyBytes = 1 << 20

// strictDecode decodes JSON from the request body, rejecting unknown fields.
// Admin endpoints use it so a misspelt field fails loudly.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// decodeBody decodes JSON from the request body and ignores unknown fields.
// Public forms are embedded on third-party pages that post extra fields.
func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// pageParams reads ?limit= and ?offset=. Missing values are zero.
func pageParams(r *http.Request) (limit, offset int, ok bool) {
	page, err := listutil.ParsePage(r.URL.Query())
	if err != nil {
		return 0, 0, false
	}
	return page.Limit, page.Offset, true
}

// --- Auth ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin handles POST /api/auth/login with a JSON or form body.
func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if isJSON(r) {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid form submission")
			return
		}
		req.Email = r.FormValue("email")
		req.Password = r.FormValue("password")
	}

	principal, err := orchestrators.ExecuteLogin(r.Context(), orchestrators.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	}, orchestrators.LoginDeps{AccountStore: a.deps.AccountStore})
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := a.deps.Sessions.Issue(principal)
	if err != nil {
		internalError(w, r, err, "Session error")
		return
	}
	a.deps.Sessions.SetCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "role": principal.Role})
}

// handleLogout handles POST /api/auth/logout.
func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	a.deps.Sessions.ClearCookie(w)
	writeMessage(w, http.StatusOK, "Logged out")
}

// handleCSRFToken handles GET /api/auth/csrf for form-based clients.
func (a *App) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"csrfToken": csrf.Token(r)})
}

// --- Operations ---

// handleHealth handles GET /healthz.
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.DB.PingContext(r.Context()); err != nil {
		slog.Error("health_check_failed", "error", err.Error())
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDashboard handles GET /api/admin/dashboard.
func (a *App) handleDashboard(w http.ResponseWriter, r *http.Request) {
	result, err := projections.GetDashboard(r.Context(), middleware.PrincipalFrom(r.Context()), projections.GetDashboardDeps{
		SubscriberStore: a.deps.SubscriberStore,
		PostStore:       a.deps.PostStore,
		NewsletterStore: a.deps.NewsletterStore,
	})
	if err != nil {
		respondError(w, r, err, failure{internal: "Failed to fetch dashboard"})
		return
	}
	writeJSON(w, http.StatusOK, dashboardViewOf(result))
}
