package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/parkshare/internal/application"
	"github.com/example/parkshare/internal/persistence"
	"github.com/example/parkshare/internal/scheduler"
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime is the instant all fixture timestamps are derived from.
func ReferenceTime() time.Time {
	return referenceTime
}

// Option mutates a fixture before it is returned.
type Option[T any] func(*T)

type (
	UserOption    = Option[UserFixture]
	SpaceOption   = Option[SpaceFixture]
	BookingOption = Option[BookingFixture]
	SessionOption = Option[SessionFixture]
)

var counters struct{ user, space, booking, session atomic.Uint64 }

func build[T any](fixture T, opts []Option[T]) T {
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// UserFixture is a user row with a plain-text stand-in for the password hash.
type UserFixture struct {
	persistence.User
}

// NewUserFixture returns user-NNN with an example.com address.
func NewUserFixture(opts ...UserOption) UserFixture {
	n := counters.user.Add(1)
	at := referenceTime.Add(time.Duration(n) * time.Minute)
	return build(UserFixture{persistence.User{
		ID:           fmt.Sprintf("user-%03d", n),
		Email:        fmt.Sprintf("user-%03d@example.com", n),
		DisplayName:  fmt.Sprintf("User %03d", n),
		PasswordHash: fmt.Sprintf("hash-%03d", n),
		CreatedAt:    at,
		UpdatedAt:    at,
	}}, opts)
}

func WithUserID(id string) UserOption       { return func(f *UserFixture) { f.ID = id } }
func WithUserEmail(email string) UserOption { return func(f *UserFixture) { f.Email = email } }
func WithUserDisplayName(name string) UserOption {
	return func(f *UserFixture) { f.DisplayName = name }
}
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) { f.PasswordHash = hash }
}
func WithUserAdmin(admin bool) UserOption { return func(f *UserFixture) { f.IsAdmin = admin } }

func WithUserTimestamps(created, updated time.Time) UserOption {
	return func(f *UserFixture) { f.CreatedAt, f.UpdatedAt = created, updated }
}

func (f UserFixture) Persistence() persistence.User { return f.User }

// SpaceFixture is an available listing priced at 4.50 per hour.
type SpaceFixture struct {
	persistence.Space
}

func NewSpaceFixture(opts ...SpaceOption) SpaceFixture {
	n := counters.space.Add(1)
	at := referenceTime.Add(time.Duration(n) * time.Minute)
	return build(SpaceFixture{persistence.Space{
		ID:          fmt.Sprintf("space-%03d", n),
		OwnerID:     fmt.Sprintf("user-%03d", n),
		Title:       fmt.Sprintf("Driveway %03d", n),
		Description: "Covered driveway close to the station",
		Location:    fmt.Sprintf("%d Harbour Street", n),
		PriceCents:  450,
		Available:   true,
		CreatedAt:   at,
		UpdatedAt:   at,
	}}, opts)
}

func WithSpaceOwner(ownerID string) SpaceOption { return func(f *SpaceFixture) { f.OwnerID = ownerID } }
func WithSpaceArchived() SpaceOption            { return func(f *SpaceFixture) { f.Available = false } }

func WithSpacePrice(price application.Cents) SpaceOption {
	return func(f *SpaceFixture) { f.PriceCents = int64(price) }
}

func (f SpaceFixture) Persistence() persistence.Space { return f.Space }

// Application converts the listing for service-level tests.
func (f SpaceFixture) Application() application.Space {
	return application.Space{
		ID:           f.ID,
		OwnerID:      f.OwnerID,
		Title:        f.Title,
		Description:  f.Description,
		Location:     f.Location,
		PricePerHour: application.Cents(f.PriceCents),
		Available:    f.Available,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// BookingFixture is a pending one hour request starting a day after ReferenceTime.
type BookingFixture struct {
	persistence.Booking
}

func NewBookingFixture(opts ...BookingOption) BookingFixture {
	n := counters.booking.Add(1)
	start := referenceTime.Add(24 * time.Hour)
	return build(BookingFixture{persistence.Booking{
		ID:           fmt.Sprintf("booking-%03d", n),
		SpaceID:      fmt.Sprintf("space-%03d", n),
		RenterID:     fmt.Sprintf("user-%03d", n),
		Start:        start,
		End:          start.Add(time.Hour),
		DurationType: string(scheduler.DurationHour),
		Status:       string(scheduler.StatusPending),
		Version:      1,
		CreatedAt:    referenceTime,
		UpdatedAt:    referenceTime,
	}}, opts)
}

func WithBookingSpace(spaceID string) BookingOption {
	return func(f *BookingFixture) { f.SpaceID = spaceID }
}
func WithBookingRenter(renterID string) BookingOption {
	return func(f *BookingFixture) { f.RenterID = renterID }
}

func WithBookingInterval(start, end time.Time) BookingOption {
	return func(f *BookingFixture) { f.Start, f.End = start, end }
}

func WithBookingStatus(status scheduler.Status) BookingOption {
	return func(f *BookingFixture) { f.Status = string(status) }
}

func (f BookingFixture) Persistence() persistence.Booking { return f.Booking }

// SessionFixture is a session valid for eight hours from ReferenceTime.
type SessionFixture struct {
	persistence.Session
}

func NewSessionFixture(opts ...SessionOption) SessionFixture {
	n := counters.session.Add(1)
	return build(SessionFixture{persistence.Session{
		ID:          fmt.Sprintf("session-%03d", n),
		UserID:      fmt.Sprintf("user-%03d", n),
		Token:       fmt.Sprintf("token-%03d", n),
		Fingerprint: fmt.Sprintf("fingerprint-%03d", n),
		ExpiresAt:   referenceTime.Add(8 * time.Hour),
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}}, opts)
}

func WithSessionUserID(id string) SessionOption   { return func(f *SessionFixture) { f.UserID = id } }
func WithSessionToken(token string) SessionOption { return func(f *SessionFixture) { f.Token = token } }
func WithSessionExpiresAt(t time.Time) SessionOption {
	return func(f *SessionFixture) { f.ExpiresAt = t }
}

func (f SessionFixture) Persistence() persistence.Session { return f.Session }
