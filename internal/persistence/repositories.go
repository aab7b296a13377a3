package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error)
}

// SpaceFilter narrows space queries. Zero values match everything.
type SpaceFilter struct {
	OwnerID       string
	AvailableOnly bool
}

// SpaceRepository stores parking space listings and their images.
type SpaceRepository interface {
	CreateSpace(ctx context.Context, space Space) error
	UpdateSpace(ctx context.Context, space Space) error
	GetSpace(ctx context.Context, id string) (Space, error)
	ListSpaces(ctx context.Context, filter SpaceFilter) ([]Space, error)
	// DeleteSpace removes the space together with its bookings and images in
	// a single transaction.
	DeleteSpace(ctx context.Context, id string) error
	AddSpaceImage(ctx context.Context, image SpaceImage) error
	ListSpaceImages(ctx context.Context, spaceID string) ([]SpaceImage, error)
}

// BookingFilter narrows booking queries. Zero values match everything.
type BookingFilter struct {
	SpaceID  string
	RenterID string
	// OwnerID matches bookings on spaces owned by the given user.
	OwnerID  string
	Statuses []string
}

// StatusChange describes a compare-and-set status write. The write succeeds
// only when the stored row still carries From and ExpectedVersion; on success
// the version is incremented.
type StatusChange struct {
	BookingID       string
	From            string
	To              string
	ExpectedVersion int64
	UpdatedAt       time.Time
}

// BookingReader is the read side shared by repositories and transactions.
type BookingReader interface {
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
}

// BookingTx is the view of bookings inside a space-scoped transaction.
type BookingTx interface {
	BookingReader
	UpdateBookingStatus(ctx context.Context, change StatusChange) (Booking, error)
}

// BookingRepository stores bookings.
type BookingRepository interface {
	BookingReader
	CreateBooking(ctx context.Context, booking Booking) error
	UpdateBookingStatus(ctx context.Context, change StatusChange) (Booking, error)
	// WithinSpaceTx runs fn inside a transaction that serialises against every
	// other WithinSpaceTx call for the same space. Implementations may re-run
	// fn when the database reports a serialisation failure.
	WithinSpaceTx(ctx context.Context, spaceID string, fn func(tx BookingTx) error) error
}
