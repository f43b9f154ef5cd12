package web

import (
	"time"

	"newsroom/internal/application/orchestrators"
	"newsroom/internal/application/projections"
	"newsroom/internal/domain/newsletter"
	"newsroom/internal/domain/post"
	"newsroom/internal/domain/subscriber"
)

// JSON shapes returned by the API. Zero times render as null.

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

type analyticsView struct {
	ID           string    `json:"id"`
	Opens        int       `json:"opens"`
	Clicks       int       `json:"clicks"`
	Bounces      int       `json:"bounces"`
	Unsubscribes int       `json:"unsubscribes"`
	CreatedAt    time.Time `json:"createdAt"`
}

type newsletterView struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	ScheduledFor *time.Time     `json:"scheduledFor"`
	Template     string         `json:"template"`
	Status       string         `json:"status"`
	SentAt       *time.Time     `json:"sentAt"`
	AuthorID     string         `json:"authorId"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	Analytics    *analyticsView `json:"analytics"`
}

func newsletterViewOf(n newsletter.Newsletter, a *newsletter.Analytics) newsletterView {
	v := newsletterView{
		ID:           n.ID,
		Title:        n.Title,
		Content:      n.Content,
		ScheduledFor: timePtr(n.ScheduledFor),
		Template:     n.Template,
		Status:       n.Status,
		SentAt:       timePtr(n.SentAt),
		AuthorID:     n.AuthorID,
		CreatedAt:    n.CreatedAt,
		UpdatedAt:    n.UpdatedAt,
	}
	if a != nil {
		v.Analytics = &analyticsView{
			ID:           a.ID,
			Opens:        a.Opens,
			Clicks:       a.Clicks,
			Bounces:      a.Bounces,
			Unsubscribes: a.Unsubscribes,
			CreatedAt:    a.CreatedAt,
		}
	}
	return v
}

type deliveryView struct {
	Email     string `json:"email"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

type dispatchView struct {
	Message        string         `json:"message"`
	NewsletterID   string         `json:"newsletterId"`
	Status         string         `json:"status"`
	RecipientCount int            `json:"recipientCount"`
	DeliveredCount int            `json:"deliveredCount"`
	FailedCount    int            `json:"failedCount"`
	Results        []deliveryView `json:"results"`
}

func dispatchViewOf(res orchestrators.DispatchResult) dispatchView {
	v := dispatchView{
		Message:        "Newsletter sent successfully",
		NewsletterID:   res.NewsletterID,
		Status:         res.Status,
		RecipientCount: res.RecipientCount,
		DeliveredCount: res.DeliveredCount,
		FailedCount:    res.FailedCount,
		Results:        make([]deliveryView, 0, len(res.Results)),
	}
	for _, d := range res.Results {
		v.Results = append(v.Results, deliveryView(d))
	}
	return v
}

type categoryView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
}

func categoryViewOf(c post.Category) categoryView {
	return categoryView(c)
}

type authorView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type postView struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	Slug       string         `json:"slug"`
	Published  bool           `json:"published"`
	Author     authorView     `json:"author"`
	Categories []categoryView `json:"categories"`
	HTML       string         `json:"html,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func postViewOf(p post.Post) postView {
	v := postView{
		ID:         p.ID,
		Title:      p.Title,
		Content:    p.Content,
		Slug:       p.Slug,
		Published:  p.Published,
		Author:     authorView{ID: p.AuthorID, Name: p.AuthorName},
		Categories: make([]categoryView, 0, len(p.Categories)),
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	for _, c := range p.Categories {
		v.Categories = append(v.Categories, categoryViewOf(c))
	}
	return v
}

type subscriberView struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Verified   bool      `json:"verified"`
	Subscribed bool      `json:"subscribed"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func subscriberViewOf(s subscriber.Subscriber) subscriberView {
	return subscriberView(s)
}

type recentView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status,omitempty"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"createdAt"`
}

type dashboardView struct {
	SubscriberCount   int          `json:"subscriberCount"`
	PostCount         int          `json:"postCount"`
	NewsletterCount   int          `json:"newsletterCount"`
	RecentPosts       []recentView `json:"recentPosts"`
	RecentNewsletters []recentView `json:"recentNewsletters"`
}

func dashboardViewOf(d projections.DashboardResult) dashboardView {
	v := dashboardView{
		SubscriberCount:   d.SubscriberCount,
		PostCount:         d.PostCount,
		NewsletterCount:   d.NewsletterCount,
		RecentPosts:       make([]recentView, 0, len(d.RecentPosts)),
		RecentNewsletters: make([]recentView, 0, len(d.RecentNewsletters)),
	}
	for _, item := range d.RecentPosts {
		v.RecentPosts = append(v.RecentPosts, recentView(item))
	}
	for _, item := range d.RecentNewsletters {
		v.RecentNewsletters = append(v.RecentNewsletters, recentView(item))
	}
	return v
}
