package web

import (
	"net/http"
	"strings"
	"time"

	"newsroom/internal/adapters/http/middleware"
	newsletterStore "newsroom/internal/adapters/storage/newsletter"
	"newsroom/internal/application/orchestrators"
)

type newsletterRequest struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	ScheduledFor string `json:"scheduledFor"`
	Template     string `json:"template"`
}

// scheduleLayouts are accepted for scheduledFor. The second is what an HTML
// datetime-local input submits and is read as UTC.
var scheduleLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"}

func parseSchedule(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range scheduleLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &orchestrators.ValidationError{Field: "scheduledFor", Message: "scheduledFor must be an ISO 8601 timestamp"}
}

func (req newsletterRequest) input() (orchestrators.NewsletterInput, error) {
	at, err := parseSchedule(req.ScheduledFor)
	if err != nil {
		return orchestrators.NewsletterInput{}, err
	}
	return orchestrators.NewsletterInput{
		Title:        req.Title,
		Content:      req.Content,
		ScheduledFor: at,
		Template:     req.Template,
	}, nil
}

func (a *App) newsletterDeps() orchestrators.NewsletterDeps {
	return orchestrators.NewsletterDeps{
		NewsletterStore: a.deps.NewsletterStore,
		GenerateID:      a.deps.GenerateID,
		Now:             a.deps.Now,
	}
}

// handleNewslettersGet handles GET /api/admin/newsletters, or one letter with ?id=.
func (a *App) handleNewslettersGet(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFrom(r.Context())

	if id := r.URL.Query().Get("id"); id != "" {
		n, err := orchestrators.ExecuteGetNewsletter(r.Context(), principal, id, a.newsletterDeps())
		if err != nil {
			respondError(w, r, err, failure{internal: "Failed to fetch newsletters", notFound: "Newsletter not found"})
			return
		}
		writeJSON(w, http.StatusOK, newsletterViewOf(n, nil))
		return
	}

	limit, offset, ok := pageParams(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid pagination parameters")
		return
	}
	list, err := orchestrators.ExecuteListNewsletters(r.Context(), principal, newsletterStore.ListFilter{
		Limit:  limit,
		Offset: offset,
		Status: strings.ToUpper(r.URL.Query().Get("status")),
	}, a.newsletterDeps())
	if err != nil {
		respondError(w, r, err, failure{internal: "Failed to fetch newsletters"})
		return
	}

	views := make([]newsletterView, 0, len(list))
	for _, n := range list {
		views = append(views, newsletterViewOf(n.Newsletter, n.Analytics))
	}
	writeJSON(w, http.StatusOK, views)
}

// handleNewsletterCreate handles POST /api/admin/newsletters.
func (a *App) handleNewsletterCreate(w http.ResponseWriter, r *http.Request) {
	var req newsletterRequest
	if err := strictDecode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	input, err := req.input()
	if err != nil {
		respondError(w, r, err, failure{})
		return
	}

	created, err := orchestrators.ExecuteCreateNewsletter(r.Context(), middleware.PrincipalFrom(r.Context()), input, a.newsletterDeps())
	if err != nil {
		respondError(w, r, err, failure{internal: "Failed to create newsletter"})
		return
	}
	writeJSON(w, http.StatusCreated, newsletterViewOf(created, nil))
}

// handleNewsletterUpdate handles PUT /api/admin/newsletters?id=.
func (a *App) handleNewsletterUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Newsletter ID is required")
		return
	}
	var req newsletterRequest
	if err := strictDecode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	input, err := req.input()
	if err != nil {
		respondError(w, r, err, failure{})
		return
	}

	updated, err := orchestrators.ExecuteUpdateNewsletter(r.Context(), middleware.PrincipalFrom(r.Context()), id, input, a.newsletterDeps())
	if err != nil {
		respondError(w, r, err, failure{internal: "Failed to update newsletter", notFound: "Newsletter not found"})
		return
	}
	writeJSON(w, http.StatusOK, newsletterViewOf(updated, nil))
}

// handleNewsletterDelete handles DELETE /api/admin/newsletters?id=.
// A nonexistent id surfaces as a store error and maps to 500.
func (a *App) handleNewsletterDelete(w http.ResponseWriter, r *http.Request) {
	err := orchestrators.ExecuteDeleteNewsletter(r.Context(), middleware.PrincipalFrom(r.Context()), r.URL.Query().Get("id"), a.newsletterDeps())
	if err != nil {
		respondError(w, r, err, failure{internal: "Failed to delete newsletter"})
		return
	}
	writeMessage(w, http.StatusOK, "Newsletter deleted successfully")
}

type sendRequest struct {
	NewsletterID string `json:"newsletterId"`
}

// handleNewsletterSend handles POST /api/admin/newsletters/send.
func (a *App) handleNewsletterSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := strictDecode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := orchestrators.ExecuteDispatchNewsletter(r.Context(), middleware.PrincipalFrom(r.Context()), req.NewsletterID, orchestrators.DispatchDeps{
		NewsletterStore: a.deps.NewsletterStore,
		SubscriberStore: a.deps.SubscriberStore,
		Sender:          a.deps.Sender,
		Renderer:        a.deps.Renderer,
		GenerateID:      a.deps.GenerateID,
		Now:             a.deps.Now,
		UnsubscribeLink: a.unsubscribeLink(),
	})
	if err != nil {
		// A dispatch that ended FAILED returns a DispatchError, which lands in the 500 branch.
		respondError(w, r, err, failure{internal: "Failed to send newsletter", notFound: "Newsletter not found"})
		return
	}
	writeJSON(w, http.StatusOK, dispatchViewOf(result))
}

// handleNewsletterRecover handles POST /api/admin/newsletters/recover.
// Newsletters stuck in SENDING past the stale threshold go back to DRAFT.
func (a *App) handleNewsletterRecover(w http.ResponseWriter, r *http.Request) {
	ids, err := orchestrators.ExecuteRecoverStalledDispatches(r.Context(), middleware.PrincipalFrom(r.Context()), orchestrators.RecoverDeps{
		NewsletterStore: a.deps.NewsletterStore,
		Now:             a.deps.Now,
		StaleAfter:      a.deps.StaleDispatch,
	})
	if err != nil {
		respondError(w, r, err, failure{internal: "Failed to recover newsletters"})
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Stalled newsletters returned to draft",
		"newsletterIds": ids,
	})
}
