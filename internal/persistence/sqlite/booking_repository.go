package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/example/parkshare/internal/persistence"
)

// BookingRepository implements persistence.BookingRepository using SQLite.
type BookingRepository struct {
	pool *ConnectionPool
}

// NewBookingRepository creates a new SQLite booking repository.
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

const bookingColumns = `b.id, b.space_id, b.renter_id, b.start_at, b.end_at, b.duration_type, b.status, b.version, b.created_at, b.updated_at`

// CreateBooking inserts a new booking. The version starts at 1.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || booking.SpaceID == "" || booking.RenterID == "" {
		return persistence.ErrConstraintViolation
	}
	if booking.Version <= 0 {
		booking.Version = 1
	}

	const query = `
		INSERT INTO bookings (id, space_id, renter_id, start_at, end_at, duration_type, status, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.pool.DB().ExecContext(ctx, query,
		booking.ID,
		booking.SpaceID,
		booking.RenterID,
		formatTime(booking.Start),
		formatTime(booking.End),
		booking.DurationType,
		booking.Status,
		booking.Version,
		formatTime(booking.CreatedAt),
		formatTime(booking.UpdatedAt),
	)
	return mapError(err)
}

// GetBooking retrieves a booking by ID.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	return getBooking(ctx, r.pool.DB(), id)
}

// ListBookings returns bookings matching filter ordered by start time.
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	return listBookings(ctx, r.pool.DB(), filter)
}

// UpdateBookingStatus performs a compare-and-set status write outside of a
// space transaction.
func (r *BookingRepository) UpdateBookingStatus(ctx context.Context, change persistence.StatusChange) (persistence.Booking, error) {
	var updated persistence.Booking
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		updated, err = updateBookingStatus(ctx, tx, change)
		return err
	})
	return updated, err
}

// WithinSpaceTx runs fn in an immediate transaction. SQLite holds one write
// lock per database, so every call is serialised, which subsumes per-space
// serialisation.
func (r *BookingRepository) WithinSpaceTx(ctx context.Context, spaceID string, fn func(tx persistence.BookingTx) error) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM spaces WHERE id = ?`, spaceID).Scan(&exists); err != nil {
			return mapError(err)
		}
		return fn(bookingTx{q: tx})
	})
}

type bookingTx struct {
	q queryer
}

func (t bookingTx) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	return getBooking(ctx, t.q, id)
}

func (t bookingTx) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	return listBookings(ctx, t.q, filter)
}

func (t bookingTx) UpdateBookingStatus(ctx context.Context, change persistence.StatusChange) (persistence.Booking, error) {
	return updateBookingStatus(ctx, t.q, change)
}

func getBooking(ctx context.Context, q queryer, id string) (persistence.Booking, error) {
	if id == "" {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	row := q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ?`, id)
	return scanBooking(row)
}

func listBookings(ctx context.Context, q queryer, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	var (
		clauses []string
		args    []any
	)
	query := `SELECT ` + bookingColumns + ` FROM bookings b`
	if filter.OwnerID != "" {
		query += ` JOIN spaces s ON s.id = b.space_id`
		clauses = append(clauses, "s.owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.SpaceID != "" {
		clauses = append(clauses, "b.space_id = ?")
		args = append(args, filter.SpaceID)
	}
	if filter.RenterID != "" {
		clauses = append(clauses, "b.renter_id = ?")
		args = append(args, filter.RenterID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(filter.Statuses)), ", ")
		clauses = append(clauses, "b.status IN ("+placeholders+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY b.start_at ASC, b.id ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	bookings := make([]persistence.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return bookings, nil
}

// updateBookingStatus writes change only when the stored status and version
// still match. updated_at never moves backwards.
func updateBookingStatus(ctx context.Context, q queryer, change persistence.StatusChange) (persistence.Booking, error) {
	stamp := formatTime(change.UpdatedAt)
	result, err := q.ExecContext(ctx, `
		UPDATE bookings
		SET status = ?, version = version + 1,
		    updated_at = CASE WHEN updated_at < ? THEN ? ELSE updated_at END
		WHERE id = ? AND status = ? AND version = ?`,
		change.To, stamp, stamp, change.BookingID, change.From, change.ExpectedVersion,
	)
	if err != nil {
		return persistence.Booking{}, mapError(err)
	}

	if err := requireAffected(result); err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			return persistence.Booking{}, err
		}
		if _, getErr := getBooking(ctx, q, change.BookingID); getErr != nil {
			return persistence.Booking{}, getErr
		}
		return persistence.Booking{}, persistence.ErrStaleVersion
	}

	return getBooking(ctx, q, change.BookingID)
}

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var (
		booking                              persistence.Booking
		startAt, endAt, createdAt, updatedAt string
		err                                  error
	)
	if err = row.Scan(
		&booking.ID,
		&booking.SpaceID,
		&booking.RenterID,
		&startAt,
		&endAt,
		&booking.DurationType,
		&booking.Status,
		&booking.Version,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Booking{}, mapError(err)
	}
	if booking.Start, err = parseTime(startAt); err != nil {
		return persistence.Booking{}, err
	}
	if booking.End, err = parseTime(endAt); err != nil {
		return persistence.Booking{}, err
	}
	if booking.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Booking{}, err
	}
	if booking.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Booking{}, err
	}
	return booking, nil
}
