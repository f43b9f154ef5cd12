package newsletter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"newsroom/internal/adapters/storage"
	domain "newsroom/internal/domain/newsletter"
)

const newsletterColumns = "n.id, n.title, n.content, n.scheduled_for, n.template, n.status, n.sent_at, n.author_id, n.created_at, n.updated_at"

// SQLStore implements Store and AnalyticsStore on SQLite or Postgres.
type SQLStore struct {
	db storage.SQLDB
}

// NewSQLStore creates a new newsletter store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

// GetByID retrieves a Newsletter by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error wrapping sql.ErrNoRows if not found
func (s *SQLStore) GetByID(ctx context.Context, id string) (domain.Newsletter, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+newsletterColumns+" FROM newsletter n WHERE n.id = $1", id)
	entity, err := scanNewsletter(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Newsletter{}, fmt.Errorf("newsletter not found: %w", err)
	}
	return entity, err
}

// Create inserts a new Newsletter.
// PRE: entity has been validated
// POST: Row inserted
func (s *SQLStore) Create(ctx context.Context, entity domain.Newsletter) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO newsletter (id, title, content, scheduled_for, template, status, sent_at, author_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entity.ID,
		entity.Title,
		entity.Content,
		storage.NullableTime(entity.ScheduledFor),
		entity.Template,
		entity.Status,
		storage.NullableTime(entity.SentAt),
		entity.AuthorID,
		storage.FormatTime(entity.CreatedAt),
		storage.FormatTime(entity.UpdatedAt),
	)
	return err
}

// Update rewrites the editable fields of a DRAFT or SCHEDULED Newsletter.
// PRE: entity has been validated
// POST: Row updated; a newsletter that left the editable states is not touched
func (s *SQLStore) Update(ctx context.Context, entity domain.Newsletter) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE newsletter SET title = $1, content = $2, scheduled_for = $3, template = $4, status = $5, updated_at = $6
		WHERE id = $7 AND status IN ($8, $9)`,
		entity.Title,
		entity.Content,
		storage.NullableTime(entity.ScheduledFor),
		entity.Template,
		entity.Status,
		storage.FormatTime(entity.UpdatedAt),
		entity.ID,
		domain.StatusDraft,
		domain.StatusScheduled,
	)
	if err != nil {
		return err
	}
	return requireOneRow(result, entity.ID)
}

// Delete removes a Newsletter and its Analytics in one transaction.
// PRE: id is non-empty
// POST: Both rows are gone, or an error wrapping sql.ErrNoRows if the id is unknown
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM analytics WHERE newsletter_id = $1", id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM newsletter WHERE id = $1", id)
	if err != nil {
		return err
	}
	if err := requireOneRow(result, id); err != nil {
		return err
	}
	return tx.Commit()
}

// List retrieves Newsletters with their Analytics, newest first.
// PRE: filter has valid parameters
// POST: Returns matching entities; Analytics is nil when no dispatch was attempted
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]domain.WithAnalytics, error) {
	var queryBuilder strings.Builder
	var args []any

	queryBuilder.WriteString("SELECT " + newsletterColumns +
		", a.id, a.opens, a.clicks, a.bounces, a.unsubscribes, a.created_at" +
		" FROM newsletter n LEFT JOIN analytics a ON a.newsletter_id = n.id")
	if filter.Status != "" {
		args = append(args, filter.Status)
		fmt.Fprintf(&queryBuilder, " WHERE n.status = $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, filter.Offset)
	fmt.Fprintf(&queryBuilder, " ORDER BY n.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.WithAnalytics
	for rows.Next() {
		var item domain.WithAnalytics
		var analyticsID, analyticsCreated sql.NullString
		var opens, clicks, bounces, unsubscribes sql.NullInt64

		n, err := scanNewsletter(func(dest ...any) error {
			dest = append(dest, &analyticsID, &opens, &clicks, &bounces, &unsubscribes, &analyticsCreated)
			return rows.Scan(dest...)
		})
		if err != nil {
			return nil, err
		}
		item.Newsletter = n
		if analyticsID.Valid {
			item.Analytics = &domain.Analytics{
				ID:           analyticsID.String,
				NewsletterID: n.ID,
				Opens:        int(opens.Int64),
				Clicks:       int(clicks.Int64),
				Bounces:      int(bounces.Int64),
				Unsubscribes: int(unsubscribes.Int64),
				CreatedAt:    storage.ParseNullTime(analyticsCreated),
			}
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// Count returns the total number of newsletters.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM newsletter").Scan(&count)
	return count, err
}

// ClaimForDispatch is the compare-and-swap that admits exactly one dispatch.
// PRE: id is non-empty
// POST: Returns true iff this call moved the row from DRAFT or SCHEDULED to SENDING
func (s *SQLStore) ClaimForDispatch(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE newsletter SET status = $1, updated_at = $2 WHERE id = $3 AND status IN ($4, $5)",
		domain.StatusSending,
		storage.FormatTime(at),
		id,
		domain.StatusDraft,
		domain.StatusScheduled,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FinishDispatch records the terminal status of a dispatch.
// PRE: entity.Status is SENT or FAILED and the stored row is SENDING
// POST: status, sent_at and updated_at are persisted
func (s *SQLStore) FinishDispatch(ctx context.Context, entity domain.Newsletter) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE newsletter SET status = $1, sent_at = $2, updated_at = $3 WHERE id = $4 AND status = $5",
		entity.Status,
		storage.NullableTime(entity.SentAt),
		storage.FormatTime(entity.UpdatedAt),
		entity.ID,
		domain.StatusSending,
	)
	if err != nil {
		return err
	}
	return requireOneRow(result, entity.ID)
}

// ReleaseStalled hands stalled dispatches back to the editor. A dispatch that
// outlived its process, or whose terminal write failed, stays SENDING forever
// otherwise.
// PRE: staleBefore is older than the longest expected dispatch
// POST: Returns the ids moved from SENDING to DRAFT by this call
func (s *SQLStore) ReleaseStalled(ctx context.Context, staleBefore, at time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM newsletter WHERE status = $1 AND updated_at < $2 ORDER BY updated_at",
		domain.StatusSending,
		storage.FormatTime(staleBefore),
	)
	if err != nil {
		return nil, err
	}
	var candidates []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		candidates = append(candidates, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var released []string
	for _, id := range candidates {
		// Re-check both conditions so a dispatch finishing in between keeps its status.
		result, err := s.db.ExecContext(ctx,
			"UPDATE newsletter SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4 AND updated_at < $5",
			domain.StatusDraft,
			storage.FormatTime(at),
			id,
			domain.StatusSending,
			storage.FormatTime(staleBefore),
		)
		if err != nil {
			return released, err
		}
		if n, err := result.RowsAffected(); err == nil && n == 1 {
			released = append(released, id)
		}
	}
	return released, nil
}

// CreateAnalytics inserts the zeroed counters row for a dispatch.
// PRE: newsletter exists
// POST: Row inserted; a second row for the same newsletter yields storage.ErrDuplicate
func (s *SQLStore) CreateAnalytics(ctx context.Context, a domain.Analytics) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analytics (id, newsletter_id, opens, clicks, bounces, unsubscribes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.NewsletterID, a.Opens, a.Clicks, a.Bounces, a.Unsubscribes, storage.FormatTime(a.CreatedAt),
	)
	if storage.IsUniqueViolation(err) {
		return fmt.Errorf("analytics for %s: %w", a.NewsletterID, storage.ErrDuplicate)
	}
	return err
}

// GetAnalytics retrieves the Analytics row for a newsletter.
// POST: Returns the row or an error wrapping sql.ErrNoRows
func (s *SQLStore) GetAnalytics(ctx context.Context, newsletterID string) (domain.Analytics, error) {
	var a domain.Analytics
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, newsletter_id, opens, clicks, bounces, unsubscribes, created_at FROM analytics WHERE newsletter_id = $1",
		newsletterID,
	).Scan(&a.ID, &a.NewsletterID, &a.Opens, &a.Clicks, &a.Bounces, &a.Unsubscribes, &createdAt)
	if err == sql.ErrNoRows {
		return domain.Analytics{}, fmt.Errorf("analytics not found: %w", err)
	}
	if err != nil {
		return domain.Analytics{}, err
	}
	a.CreatedAt, _ = storage.ParseTime(createdAt)
	return a, nil
}

func requireOneRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("newsletter %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// scanNewsletter extracts a Newsletter from a row scanner function.
func scanNewsletter(scan func(dest ...any) error) (domain.Newsletter, error) {
	var entity domain.Newsletter
	var scheduledFor, sentAt sql.NullString
	var createdAt, updatedAt string
	err := scan(
		&entity.ID,
		&entity.Title,
		&entity.Content,
		&scheduledFor,
		&entity.Template,
		&entity.Status,
		&sentAt,
		&entity.AuthorID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Newsletter{}, err
	}
	entity.ScheduledFor = storage.ParseNullTime(scheduledFor)
	entity.SentAt = storage.ParseNullTime(sentAt)
	entity.CreatedAt, _ = storage.ParseTime(createdAt)
	entity.UpdatedAt, _ = storage.ParseTime(updatedAt)
	return entity, nil
}
