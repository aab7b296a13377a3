package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/parkshare/internal/persistence"
)

// BookingRepository implements persistence.BookingRepository using PostgreSQL.
type BookingRepository struct {
	pool    *pgxpool.Pool
	retries int
	logger  *slog.Logger
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.pool.Exec(ctx, query,
		booking.ID,
		booking.SpaceID,
		booking.RenterID,
		utc(booking.Start),
		utc(booking.End),
		booking.DurationType,
		booking.Status,
		booking.Version,
		utc(booking.CreatedAt),
		utc(booking.UpdatedAt),
	)
	return mapError(err)
}

// GetBooking retrieves a booking by ID.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	return getBooking(ctx, r.pool, id)
}

// ListBookings returns bookings matching filter ordered by start time.
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	return listBookings(ctx, r.pool, filter)
}

// UpdateBookingStatus performs a compare-and-set status write outside of a
// space transaction.
func (r *BookingRepository) UpdateBookingStatus(ctx context.Context, change persistence.StatusChange) (persistence.Booking, error) {
	var updated persistence.Booking
	err := withTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var err error
		updated, err = updateBookingStatus(ctx, tx, change)
		return err
	})
	return updated, err
}

// WithinSpaceTx runs fn in a serializable transaction holding a row lock on
// the space, so approvals for one space queue behind each other while other
// spaces proceed. Serialisation failures and deadlocks re-run fn.
func (r *BookingRepository) WithinSpaceTx(ctx context.Context, spaceID string, fn func(tx persistence.BookingTx) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	delay := 20 * time.Millisecond

	var err error
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			r.logger.DebugContext(ctx, "retrying space transaction",
				"space_id", spaceID,
				"attempt", attempt,
				"error", err,
			)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}

		err = withTx(ctx, r.pool, opts, func(tx pgx.Tx) error {
			var locked string
			if err := tx.QueryRow(ctx, `SELECT id FROM spaces WHERE id = $1 FOR UPDATE`, spaceID).Scan(&locked); err != nil {
				return mapError(err)
			}
			return fn(bookingTx{db: tx})
		})
		if err == nil || !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("postgres: space transaction failed after %d retries: %w", r.retries, err)
}

type bookingTx struct {
	db dbExecutor
}

func (t bookingTx) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	return getBooking(ctx, t.db, id)
}

func (t bookingTx) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	return listBookings(ctx, t.db, filter)
}

func (t bookingTx) UpdateBookingStatus(ctx context.Context, change persistence.StatusChange) (persistence.Booking, error) {
	return updateBookingStatus(ctx, t.db, change)
}

func getBooking(ctx context.Context, db dbExecutor, id string) (persistence.Booking, error) {
	if id == "" {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return scanBooking(db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = $1`, id))
}

func listBookings(ctx context.Context, db dbExecutor, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	var (
		clauses []string
		args    []any
	)
	query := `SELECT ` + bookingColumns + ` FROM bookings b`
	if filter.OwnerID != "" {
		query += ` JOIN spaces s ON s.id = b.space_id`
		args = append(args, filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("s.owner_id = $%d", len(args)))
	}
	if filter.SpaceID != "" {
		args = append(args, filter.SpaceID)
		clauses = append(clauses, fmt.Sprintf("b.space_id = $%d", len(args)))
	}
	if filter.RenterID != "" {
		args = append(args, filter.RenterID)
		clauses = append(clauses, fmt.Sprintf("b.renter_id = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		args = append(args, filter.Statuses)
		clauses = append(clauses, fmt.Sprintf("b.status = ANY($%d)", len(args)))
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY b.start_at ASC, b.id ASC`

	rows, err := db.Query(ctx, query, args...)
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
func updateBookingStatus(ctx context.Context, db dbExecutor, change persistence.StatusChange) (persistence.Booking, error) {
	row := db.QueryRow(ctx, `
		UPDATE bookings b
		SET status = $1, version = b.version + 1, updated_at = GREATEST(b.updated_at, $2)
		WHERE b.id = $3 AND b.status = $4 AND b.version = $5
		RETURNING `+bookingColumns,
		change.To, utc(change.UpdatedAt), change.BookingID, change.From, change.ExpectedVersion,
	)
	updated, err := scanBooking(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return persistence.Booking{}, err
	}
	if _, getErr := getBooking(ctx, db, change.BookingID); getErr != nil {
		return persistence.Booking{}, getErr
	}
	return persistence.Booking{}, persistence.ErrStaleVersion
}

func scanBooking(row pgx.Row) (persistence.Booking, error) {
	var booking persistence.Booking
	if err := row.Scan(
		&booking.ID,
		&booking.SpaceID,
		&booking.RenterID,
		&booking.Start,
		&booking.End,
		&booking.DurationType,
		&booking.Status,
		&booking.Version,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	); err != nil {
		return persistence.Booking{}, mapError(err)
	}
	booking.Start = utc(booking.Start)
	booking.End = utc(booking.End)
	booking.CreatedAt = utc(booking.CreatedAt)
	booking.UpdatedAt = utc(booking.UpdatedAt)
	return booking, nil
}
