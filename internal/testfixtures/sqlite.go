package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/parkshare/internal/persistence"
	"github.com/example/parkshare/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite storage
// instance for integration-style persistence tests.
type SQLiteHarness struct {
	Users    persistence.UserRepository
	Sessions persistence.SessionRepository
	Spaces   persistence.SpaceRepository
	Bookings persistence.BookingRepository
	Storage  *sqlite.Storage

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "parkshare.db")

	storage, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Users:    storage,
		Sessions: storage,
		Spaces:   storage,
		Bookings: storage,
		Storage:  storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedUser persists the user fixture or fails the test.
func (h *SQLiteHarness) SeedUser(tb testing.TB, fixture UserFixture) {
	tb.Helper()
	if err := h.Users.CreateUser(context.Background(), fixture.Persistence()); err != nil {
		tb.Fatalf("failed to seed user %s: %v", fixture.ID, err)
	}
}

// SeedSpace persists the space fixture or fails the test. The owner must exist.
func (h *SQLiteHarness) SeedSpace(tb testing.TB, fixture SpaceFixture) {
	tb.Helper()
	if err := h.Spaces.CreateSpace(context.Background(), fixture.Persistence()); err != nil {
		tb.Fatalf("failed to seed space %s: %v", fixture.ID, err)
	}
}

// SeedBooking persists the booking fixture or fails the test.
func (h *SQLiteHarness) SeedBooking(tb testing.TB, fixture BookingFixture) {
	tb.Helper()
	if err := h.Bookings.CreateBooking(context.Background(), fixture.Persistence()); err != nil {
		tb.Fatalf("failed to seed booking %s: %v", fixture.ID, err)
	}
}
