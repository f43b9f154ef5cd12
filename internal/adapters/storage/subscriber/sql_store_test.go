package subscriber

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"newsroom/internal/adapters/storage"
	domain "newsroom/internal/domain/subscriber"
)

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.MigrateDB(db))
	return NewSQLStore(db)
}

func seed(t *testing.T, store *SQLStore, id, email string, verified, subscribed bool, offset time.Duration) {
	t.Helper()
	s := domain.New(id, email, "", base.Add(offset))
	s.Verified = verified
	s.Subscribed = subscribed
	require.NoError(t, store.Create(context.Background(), s))
}

// TestSQLStore_CreateAndGet verifies flags and timestamps survive a round trip.
func TestSQLStore_CreateAndGet(t *testing.T) {
	store := openTestStore(t)
	seed(t, store, "s1", "reader@example.com", false, true, 0)

	got, err := store.GetByEmail(context.Background(), "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
	assert.False(t, got.Verified)
	assert.True(t, got.Subscribed)
	assert.True(t, got.CreatedAt.Equal(base))
}

// TestSQLStore_Create_Duplicate verifies a second row for the same email is rejected.
func TestSQLStore_Create_Duplicate(t *testing.T) {
	store := openTestStore(t)
	seed(t, store, "s1", "reader@example.com", false, true, 0)

	err := store.Create(context.Background(), domain.New("s2", "reader@example.com", "", base))
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestSQLStore_GetByEmail_NotFound verifies sql.ErrNoRows is wrapped.
func TestSQLStore_GetByEmail_NotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetByEmail(context.Background(), "nobody@example.com")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

// TestSQLStore_Save verifies reactivation persists.
func TestSQLStore_Save(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seed(t, store, "s1", "reader@example.com", true, false, 0)

	s, err := store.GetByEmail(ctx, "reader@example.com")
	require.NoError(t, err)
	require.NoError(t, s.Reactivate(base.Add(time.Hour)))
	require.NoError(t, store.Save(ctx, s))

	got, _ := store.GetByEmail(ctx, "reader@example.com")
	assert.True(t, got.Subscribed)
	assert.True(t, got.UpdatedAt.Equal(base.Add(time.Hour)))
}

// TestSQLStore_Save_Missing verifies updating an unknown id is an error.
func TestSQLStore_Save_Missing(t *testing.T) {
	store := openTestStore(t)
	err := store.Save(context.Background(), domain.Subscriber{ID: "ghost", UpdatedAt: base})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

// TestSQLStore_ListEligible verifies both flags are required.
func TestSQLStore_ListEligible(t *testing.T) {
	store := openTestStore(t)
	seed(t, store, "s1", "both@example.com", true, true, 0)
	seed(t, store, "s2", "unverified@example.com", false, true, time.Minute)
	seed(t, store, "s3", "lapsed@example.com", true, false, 2*time.Minute)
	seed(t, store, "s4", "later@example.com", true, true, 3*time.Minute)

	got, err := store.ListEligible(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "both@example.com", got[0].Email)
	assert.Equal(t, "later@example.com", got[1].Email)
}

// TestSQLStore_List verifies newest-first ordering and the subscribed filter.
func TestSQLStore_List(t *testing.T) {
	store := openTestStore(t)
	seed(t, store, "s1", "first@example.com", false, true, 0)
	seed(t, store, "s2", "second@example.com", false, false, time.Minute)

	all, err := store.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "s2", all[0].ID)

	active, err := store.List(context.Background(), ListFilter{SubscribedOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "s1", active[0].ID)
}

// TestSQLStore_ListEligible_QueryError verifies driver errors propagate.
func TestSQLStore_ListEligible_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, email").
		WillReturnError(errors.New("connection reset"))

	_, err = NewSQLStore(db).ListEligible(context.Background())
	assert.EqualError(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSQLStore_ListEligible_ScanError verifies malformed rows surface as errors.
func TestSQLStore_ListEligible_ScanError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "email", "name", "verified", "subscribed", "created_at", "updated_at"}).
		AddRow("s1", "a@b.co", "", "not-an-int", 1, "2026-01-01T00:00:00.000000Z", "2026-01-01T00:00:00.000000Z")
	mock.ExpectQuery("SELECT id, email").WillReturnRows(rows)

	_, err = NewSQLStore(db).ListEligible(context.Background())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
