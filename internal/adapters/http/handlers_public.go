package web

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"newsroom/internal/adapters/http/middleware"
	subscriberStore "newsroom/internal/adapters/storage/subscriber"
	"newsroom/internal/application/listutil"
	"newsroom/internal/application/orchestrators"
)

type subscribeRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type unsubscribeRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

var (
	errUnsubscribeToken         = errors.New("invalid unsubscribe token")
	errUnsubscribeTokenRequired = errors.New("unsubscribe token required")
)

// unsubscribeErrorBody is the 401 message for each token failure.
var unsubscribeErrorBody = map[error]string{
	errUnsubscribeToken:         "Invalid unsubscribe token",
	errUnsubscribeTokenRequired: "Unsubscribe token required",
}

func (a *App) subscribeDeps() orchestrators.SubscribeDeps {
	return orchestrators.SubscribeDeps{
		SubscriberStore: a.deps.SubscriberStore,
		Guard:           a.deps.Guard,
		GenerateID:      a.deps.GenerateID,
		Now:             a.deps.Now,
	}
}

// handleSubscribe handles POST /api/subscribe.
// 201 for a new subscriber, 200 when a lapsed one is reactivated.
func (a *App) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := orchestrators.ExecuteSubscribe(r.Context(), orchestrators.SubscribeInput{
		Email: req.Email,
		Name:  req.Name,
	}, a.subscribeDeps())
	if err != nil {
		respondError(w, r, err, failure{internal: "An error occurred while processing your subscription"})
		return
	}

	if result.Reactivated {
		writeMessage(w, http.StatusOK, "Subscription reactivated successfully")
		return
	}
	writeMessage(w, http.StatusCreated, "Subscription successful")
}

// handleUnsubscribe handles POST /api/unsubscribe with {email, token?}.
// A token, when given, must have been issued for email (or stands in for it).
func (a *App) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	addr, err := a.unsubscribeTarget(req.Email, req.Token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, unsubscribeErrorBody[err])
		return
	}
	a.unsubscribe(w, r, addr)
}

// handleUnsubscribeOneClick handles POST /api/unsubscribe/one-click?token=,
// the RFC 8058 target of a newsletter's List-Unsubscribe header.
func (a *App) handleUnsubscribeOneClick(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, unsubscribeErrorBody[errUnsubscribeToken])
		return
	}
	addr, err := a.unsubscribeTarget("", token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, unsubscribeErrorBody[err])
		return
	}
	a.unsubscribe(w, r, addr)
}

func (a *App) unsubscribe(w http.ResponseWriter, r *http.Request, addr string) {
	if err := orchestrators.ExecuteUnsubscribe(r.Context(), addr, a.subscribeDeps()); err != nil {
		respondError(w, r, err, failure{internal: "An error occurred while processing your request", notFound: "Subscriber not found"})
		return
	}
	writeMessage(w, http.StatusOK, "Unsubscribed successfully")
}

// unsubscribeTarget resolves the address to unsubscribe from the request
// email and optional signed token.
func (a *App) unsubscribeTarget(addr, token string) (string, error) {
	if token == "" {
		if a.deps.RequireUnsubscribeToken {
			return "", errUnsubscribeTokenRequired
		}
		return addr, nil
	}
	if a.deps.Unsubscribe == nil {
		return "", errUnsubscribeToken
	}
	signed, err := a.deps.Unsubscribe.Parse(token)
	if err != nil {
		return "", errUnsubscribeToken
	}
	if addr != "" && !strings.EqualFold(strings.TrimSpace(addr), signed) {
		return "", errUnsubscribeToken
	}
	return signed, nil
}

// unsubscribeLink builds the one-click URL for a recipient, or nil when
// links are not configured.
func (a *App) unsubscribeLink() func(string) (string, error) {
	if a.deps.Unsubscribe == nil || a.deps.UnsubscribeBase == "" {
		return nil
	}
	return func(addr string) (string, error) {
		token, err := a.deps.Unsubscribe.Issue(addr)
		if err != nil {
			return "", err
		}
		return a.deps.UnsubscribeBase + "?" + url.Values{"token": {token}}.Encode(), nil
	}
}

// handleSubscribersList handles GET /api/admin/subscribers.
func (a *App) handleSubscribersList(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid pagination parameters")
		return
	}
	subs, err := orchestrators.ExecuteListSubscribers(r.Context(), middleware.PrincipalFrom(r.Context()), subscriberStore.ListFilter{
		Limit:          limit,
		Offset:         offset,
		SubscribedOnly: listutil.ParseBool(r.URL.Query(), "subscribed"),
	}, a.deps.SubscriberStore)
	if err != nil {
		respondError(w, r, err, failure{internal: "Failed to fetch subscribers"})
		return
	}
	views := make([]subscriberView, 0, len(subs))
	for _, s := range subs {
		views = append(views, subscriberViewOf(s))
	}
	writeJSON(w, http.StatusOK, views)
}

// --- Public blog ---

func (a *App) blogDeps() orchestrators.BlogDeps {
	return orchestrators.BlogDeps{PostStore: a.deps.PostStore, Markdown: a.deps.Markdown}
}

// handlePublicPosts handles GET /api/posts.
func (a *App) handlePublicPosts(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid pagination parameters")
		return
	}
	posts, err := orchestrators.ExecuteListPublishedPosts(r.Context(), limit, offset, a.blogDeps())
	if err != nil {
		respondError(w, r, err, failure{internal: "Failed to fetch posts"})
		return
	}
	views := make([]postView, 0, len(posts))
	for _, p := range posts {
		views = append(views, postViewOf(p))
	}
	writeJSON(w, http.StatusOK, views)
}

// handlePublicPost handles GET /api/posts/{slug}.
func (a *App) handlePublicPost(w http.ResponseWriter, r *http.Request) {
	p, err := orchestrators.ExecuteGetPublishedPost(r.Context(), chi.URLParam(r, "slug"), a.blogDeps())
	if err != nil {
		respondError(w, r, err, failure{internal: "Failed to fetch post", notFound: "Post not found"})
		return
	}
	v := postViewOf(p.Post)
	v.HTML = p.HTML
	writeJSON(w, http.StatusOK, v)
}
