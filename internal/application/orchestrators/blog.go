package orchestrators

import (
	"context"

	postStore "newsroom/internal/adapters/storage/post"
	"newsroom/internal/domain/post"
)

// PostStoreForBlog defines the read-only store interface of the public blog.
type PostStoreForBlog interface {
	GetBySlug(ctx context.Context, slug string) (post.Post, error)
	List(ctx context.Context, filter postStore.ListFilter) ([]post.Post, error)
}

// BlogDeps holds dependencies for the public blog.
type BlogDeps struct {
	PostStore PostStoreForBlog
	Markdown  func(src string) (string, error)
}

// PublishedPost is a post prepared for public display.
type PublishedPost struct {
	post.Post
	HTML string
}

// ExecuteListPublishedPosts returns published posts, newest first.
// POST: Drafts are never included
func ExecuteListPublishedPosts(ctx context.Context, limit, offset int, deps BlogDeps) ([]post.Post, error) {
	posts, err := deps.PostStore.List(ctx, postStore.ListFilter{Limit: limit, Offset: offset, PublishedOnly: true})
	if err != nil {
		return nil, storeErr("list published posts", err)
	}
	return posts, nil
}

// ExecuteGetPublishedPost returns a published post with its body rendered to HTML.
// POST: Unknown and unpublished slugs both yield ErrNotFound
func ExecuteGetPublishedPost(ctx context.Context, slug string, deps BlogDeps) (PublishedPost, error) {
	if !post.ValidSlug(slug) {
		return PublishedPost{}, ErrNotFound
	}
	p, err := deps.PostStore.GetBySlug(ctx, slug)
	if err != nil {
		return PublishedPost{}, notFoundOr("get post", err)
	}
	if !p.IsVisible() {
		return PublishedPost{}, ErrNotFound
	}
	html, err := deps.Markdown(p.Content)
	if err != nil {
		return PublishedPost{}, storeErr("render post", err)
	}
	return PublishedPost{Post: p, HTML: html}, nil
}
