package web

import (
	"net/http"

	"newsroom/internal/adapters/http/middleware"
	postStore "newsroom/internal/adapters/storage/post"
	"newsroom/internal/application/orchestrators"
)

type postRequest struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Slug        string   `json:"slug"`
	Published   bool     `json:"published"`
	CategoryIDs []string `json:"categoryIds"`
}

func (req postRequest) input() orchestrators.PostInput {
	return orchestrators.PostInput{
		Title:       req.Title,
		Content:     req.Content,
		Slug:        req.Slug,
		Published:   req.Published,
		CategoryIDs: req.CategoryIDs,
	}
}

func (a *App) postDeps() orchestrators.PostDeps {
	return orchestrators.PostDeps{
		PostStore:     a.deps.PostStore,
		CategoryStore: a.deps.CategoryStore,
		GenerateID:    a.deps.GenerateID,
		Now:           a.deps.Now,
	}
}

// handlePostsList handles GET /api/admin/posts.
func (a *App) handlePostsList(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid pagination parameters")
		return
	}
	posts, err := orchestrators.ExecuteListPosts(r.Context(), middleware.PrincipalFrom(r.Context()), postStore.ListFilter{Limit: limit, Offset: offset}, a.postDeps())
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

// handlePostCreate handles POST /api/admin/posts.
func (a *App) handlePostCreate(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := strictDecode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	p, err := orchestrators.ExecuteCreatePost(r.Context(), middleware.PrincipalFrom(r.Context()), req.input(), a.postDeps())
	if err != nil {
		respondError(w, r, err, failure{internal: "Failed to create post"})
		return
	}
	writeJSON(w, http.StatusCreated, postViewOf(p))
}

// handlePostUpdate handles PUT /api/admin/posts?id=.
func (a *App) handlePostUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Post ID is required")
		return
	}
	var req postRequest
	if err := strictDecode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	p, err := orchestrators.ExecuteUpdatePost(r.Context(), middleware.PrincipalFrom(r.Context()), id, req.input(), a.postDeps())
	if err != nil {
		respondError(w, r, err, failure{internal: "Failed to update post", notFound: "Post not found"})
		return
	}
	writeJSON(w, http.StatusOK, postViewOf(p))
}

// handlePostDelete handles DELETE /api/admin/posts?id=.
func (a *App) handlePostDelete(w http.ResponseWriter, r *http.Request) {
	err := orchestrators.ExecuteDeletePost(r.Context(), middleware.PrincipalFrom(r.Context()), r.URL.Query().Get("id"), a.postDeps())
	if err != nil {
		respondError(w, r, err, failure{internal: "Failed to delete post"})
		return
	}
	writeMessage(w, http.StatusOK, "Post deleted successfully")
}

// --- Categories ---

type categoryRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (a *App) categoryDeps() orchestrators.CategoryDeps {
	return orchestrators.CategoryDeps{
		CategoryStore: a.deps.CategoryStore,
		GenerateID:    a.deps.GenerateID,
		Now:           a.deps.Now,
	}
}

// handleCategoriesList handles GET /api/admin/categories.
func (a *App) handleCategoriesList(w http.ResponseWriter, r *http.Request) {
	cats, err := orchestrators.ExecuteListCategories(r.Context(), middleware.PrincipalFrom(r.Context()), a.categoryDeps())
	if err != nil {
		respondError(w, r, err, failure{internal: "Failed to fetch categories"})
		return
	}
	views := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		views = append(views, categoryViewOf(c))
	}
	writeJSON(w, http.StatusOK, views)
}

// handleCategoryCreate handles POST /api/admin/categories.
func (a *App) handleCategoryCreate(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := strictDecode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	c, err := orchestrators.ExecuteCreateCategory(r.Context(), middleware.PrincipalFrom(r.Context()), orchestrators.CategoryInput{
		Name: req.Name,
		Slug: req.Slug,
	}, a.categoryDeps())
	if err != nil {
		respondError(w, r, err, failure{internal: "Failed to create category"})
		return
	}
	writeJSON(w, http.StatusCreated, categoryViewOf(c))
}

// handleCategoryDelete handles DELETE /api/admin/categories?id=.
func (a *App) handleCategoryDelete(w http.ResponseWriter, r *http.Request) {
	err := orchestrators.ExecuteDeleteCategory(r.Context(), middleware.PrincipalFrom(r.Context()), r.URL.Query().Get("id"), a.categoryDeps())
	if err != nil {
		respondError(w, r, err, failure{internal: "Failed to delete category"})
		return
	}
	writeMessage(w, http.StatusOK, "Category deleted successfully")
}
