package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"newsroom/internal/adapters/email"
	"newsroom/internal/adapters/storage"
	newsletterStore "newsroom/internal/adapters/storage/newsletter"
	postStore "newsroom/internal/adapters/storage/post"
	subscriberStore "newsroom/internal/adapters/storage/subscriber"
	"newsroom/internal/domain/account"
	"newsroom/internal/domain/newsletter"
	"newsroom/internal/domain/post"
	"newsroom/internal/domain/subscriber"
)

var (
	fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	admin    = account.Principal{AccountID: "admin-1", Email: "admin@example.com", Role: account.RoleAdmin}
	reader   = account.Principal{AccountID: "user-1", Email: "user@example.com", Role: account.RoleUser}
)

func clock() time.Time { return fixedNow }

func idSeq(prefix string) func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("%s-%d", prefix, n.Add(1)) }
}

// --- Mock newsletter store ---

type mockNewsletterStore struct {
	mu          sync.Mutex
	newsletters map[string]newsletter.Newsletter
	analytics   map[string]newsletter.Analytics
	mutations   int
	getErr      error
	analyticErr error
	finishErr   error
	finished    []newsletter.Newsletter
}

func newMockNewsletterStore(ns ...newsletter.Newsletter) *mockNewsletterStore {
	m := &mockNewsletterStore{
		newsletters: make(map[string]newsletter.Newsletter),
		analytics:   make(map[string]newsletter.Analytics),
	}
	for _, n := range ns {
		m.newsletters[n.ID] = n
	}
	return m
}

func (m *mockNewsletterStore) get(id string) newsletter.Newsletter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.newsletters[id]
}

func (m *mockNewsletterStore) GetByID(_ context.Context, id string) (newsletter.Newsletter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return newsletter.Newsletter{}, m.getErr
	}
	n, ok := m.newsletters[id]
	if !ok {
		return newsletter.Newsletter{}, fmt.Errorf("newsletter %s: %w", id, sql.ErrNoRows)
	}
	return n, nil
}

func (m *mockNewsletterStore) Create(_ context.Context, n newsletter.Newsletter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutations++
	m.newsletters[n.ID] = n
	return nil
}

func (m *mockNewsletterStore) Update(_ context.Context, n newsletter.Newsletter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.newsletters[n.ID]
	if !ok || !cur.CanEdit() {
		return fmt.Errorf("newsletter %s: %w", n.ID, sql.ErrNoRows)
	}
	m.mutations++
	m.newsletters[n.ID] = n
	return nil
}

func (m *mockNewsletterStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.newsletters[id]; !ok {
		return fmt.Errorf("newsletter %s: %w", id, sql.ErrNoRows)
	}
	m.mutations++
	delete(m.newsletters, id)
	delete(m.analytics, id)
	return nil
}

func (m *mockNewsletterStore) List(_ context.Context, _ newsletterStore.ListFilter) ([]newsletter.WithAnalytics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []newsletter.WithAnalytics
	for _, n := range m.newsletters {
		w := newsletter.WithAnalytics{Newsletter: n}
		if a, ok := m.analytics[n.ID]; ok {
			w.Analytics = &a
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockNewsletterStore) ClaimForDispatch(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.newsletters[id]
	if !ok || !n.CanDispatch() {
		return false, nil
	}
	m.mutations++
	n.Status = newsletter.StatusSending
	n.UpdatedAt = at
	m.newsletters[id] = n
	return true, nil
}

func (m *mockNewsletterStore) FinishDispatch(_ context.Context, n newsletter.Newsletter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finishErr != nil {
		return m.finishErr
	}
	if m.newsletters[n.ID].Status != newsletter.StatusSending {
		return fmt.Errorf("newsletter %s: %w", n.ID, sql.ErrNoRows)
	}
	m.mutations++
	m.newsletters[n.ID] = n
	m.finished = append(m.finished, n)
	return nil
}

func (m *mockNewsletterStore) ReleaseStalled(_ context.Context, staleBefore, at time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, n := range m.newsletters {
		if n.Status == newsletter.StatusSending && n.UpdatedAt.Before(staleBefore) {
			n.Status = newsletter.StatusDraft
			n.UpdatedAt = at
			m.newsletters[id] = n
			m.mutations++
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockNewsletterStore) CreateAnalytics(_ context.Context, a newsletter.Analytics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.analyticErr != nil {
		return m.analyticErr
	}
	if _, ok := m.analytics[a.NewsletterID]; ok {
		return storage.ErrDuplicate
	}
	m.mutations++
	m.analytics[a.NewsletterID] = a
	return nil
}

// --- Mock subscriber store ---

type mockSubscriberStore struct {
	mu        sync.Mutex
	byEmail   map[string]subscriber.Subscriber
	creates   int
	saves     int
	listErr   error
	createErr error
}

func newMockSubscriberStore(subs ...subscriber.Subscriber) *mockSubscriberStore {
	m := &mockSubscriberStore{byEmail: make(map[string]subscriber.Subscriber)}
	for _, s := range subs {
		m.byEmail[s.Email] = s
	}
	return m
}

func (m *mockSubscriberStore) GetByEmail(_ context.Context, email string) (subscriber.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byEmail[email]
	if !ok {
		return subscriber.Subscriber{}, fmt.Errorf("subscriber %s: %w", email, sql.ErrNoRows)
	}
	return s, nil
}

func (m *mockSubscriberStore) Create(_ context.Context, s subscriber.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.byEmail[s.Email]; ok {
		return storage.ErrDuplicate
	}
	m.creates++
	m.byEmail[s.Email] = s
	return nil
}

func (m *mockSubscriberStore) Save(_ context.Context, s subscriber.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.byEmail[s.Email] = s
	return nil
}

func (m *mockSubscriberStore) ListEligible(_ context.Context) ([]subscriber.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []subscriber.Subscriber
	for _, s := range m.byEmail {
		if s.Verified && s.Subscribed {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *mockSubscriberStore) List(_ context.Context, _ subscriberStore.ListFilter) ([]subscriber.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []subscriber.Subscriber
	for _, s := range m.byEmail {
		out = append(out, s)
	}
	return out, nil
}

// --- Mock sender ---

type mockSender struct {
	mu       sync.Mutex
	sent     []email.SendRequest
	failFor  map[string]bool
	inFlight atomic.Int64
	maxSeen  atomic.Int64
	delay    time.Duration
}

func (s *mockSender) Send(_ context.Context, req email.SendRequest) (email.SendResult, error) {
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		prev := s.maxSeen.Load()
		if cur <= prev || s.maxSeen.CompareAndSwap(prev, cur) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, req)
	if s.failFor[req.To[0]] {
		return email.SendResult{}, errors.New("mailbox unavailable")
	}
	return email.SendResult{MessageID: "msg-" + req.To[0], SentAt: fixedNow}, nil
}

func (s *mockSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// --- Mock account store ---

type mockAccountStore struct {
	accounts map[string]account.Account
}

func newMockAccountStore(accts ...account.Account) *mockAccountStore {
	m := &mockAccountStore{accounts: make(map[string]account.Account)}
	for _, a := range accts {
		m.accounts[a.Email] = a
	}
	return m
}

func (m *mockAccountStore) GetByEmail(_ context.Context, email string) (account.Account, error) {
	a, ok := m.accounts[email]
	if !ok {
		return account.Account{}, fmt.Errorf("account %s: %w", email, sql.ErrNoRows)
	}
	return a, nil
}

func (m *mockAccountStore) Save(_ context.Context, a account.Account) error {
	m.accounts[a.Email] = a
	return nil
}

func (m *mockAccountStore) Count(_ context.Context) (int, error) {
	return len(m.accounts), nil
}

// --- Mock post and category stores ---

type mockPostStore struct {
	posts map[string]post.Post
}

func newMockPostStore(ps ...post.Post) *mockPostStore {
	m := &mockPostStore{posts: make(map[string]post.Post)}
	for _, p := range ps {
		m.posts[p.ID] = p
	}
	return m
}

func (m *mockPostStore) GetByID(_ context.Context, id string) (post.Post, error) {
	p, ok := m.posts[id]
	if !ok {
		return post.Post{}, fmt.Errorf("post %s: %w", id, sql.ErrNoRows)
	}
	return p, nil
}

func (m *mockPostStore) GetBySlug(_ context.Context, slug string) (post.Post, error) {
	for _, p := range m.posts {
		if p.Slug == slug {
			return p, nil
		}
	}
	return post.Post{}, fmt.Errorf("post %s: %w", slug, sql.ErrNoRows)
}

func (m *mockPostStore) slugTaken(p post.Post) bool {
	for _, other := range m.posts {
		if other.Slug == p.Slug && other.ID != p.ID {
			return true
		}
	}
	return false
}

func (m *mockPostStore) Create(_ context.Context, p post.Post) error {
	if m.slugTaken(p) {
		return storage.ErrDuplicate
	}
	m.posts[p.ID] = p
	return nil
}

func (m *mockPostStore) Update(_ context.Context, p post.Post) error {
	if _, ok := m.posts[p.ID]; !ok {
		return fmt.Errorf("post %s: %w", p.ID, sql.ErrNoRows)
	}
	if m.slugTaken(p) {
		return storage.ErrDuplicate
	}
	m.posts[p.ID] = p
	return nil
}

func (m *mockPostStore) Delete(_ context.Context, id string) error {
	if _, ok := m.posts[id]; !ok {
		return fmt.Errorf("post %s: %w", id, sql.ErrNoRows)
	}
	delete(m.posts, id)
	return nil
}

func (m *mockPostStore) List(_ context.Context, filter postStore.ListFilter) ([]post.Post, error) {
	var out []post.Post
	for _, p := range m.posts {
		if filter.PublishedOnly && !p.Published {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type mockCategoryStore struct {
	cats map[string]post.Category
}

func newMockCategoryStore(cs ...post.Category) *mockCategoryStore {
	m := &mockCategoryStore{cats: make(map[string]post.Category)}
	for _, c := range cs {
		m.cats[c.ID] = c
	}
	return m
}

func (m *mockCategoryStore) GetByIDs(_ context.Context, ids []string) ([]post.Category, error) {
	var out []post.Category
	for _, id := range ids {
		if c, ok := m.cats[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCategoryStore) Create(_ context.Context, c post.Category) error {
	for _, other := range m.cats {
		if other.Slug == c.Slug || other.Name == c.Name {
			return storage.ErrDuplicate
		}
	}
	m.cats[c.ID] = c
	return nil
}

func (m *mockCategoryStore) Delete(_ context.Context, id string) error {
	if _, ok := m.cats[id]; !ok {
		return fmt.Errorf("category %s: %w", id, sql.ErrNoRows)
	}
	delete(m.cats, id)
	return nil
}

func (m *mockCategoryStore) List(_ context.Context) ([]post.Category, error) {
	var out []post.Category
	for _, c := range m.cats {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
