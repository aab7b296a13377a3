package application

import (
	"time"

	"github.com/example/parkshare/internal/scheduler"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// User represents a marketplace account. Every user can both list and rent spaces.
type User struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
	Disabled     bool
}

// RegisterUserParams captures a self-service signup.
type RegisterUserParams struct {
	Email       string
	DisplayName string
	Password    string
}

// CreateAdminParams captures the operator supplied administrator account.
type CreateAdminParams struct {
	Email       string
	DisplayName string
	Password    string
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email       string
	Password    string
	Fingerprint string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}

// SpaceInput captures caller provided listing fields.
type SpaceInput struct {
	Title        string
	Description  string
	Location     string
	PricePerHour Cents
}

// Space is a parking space listing.
type Space struct {
	ID           string
	OwnerID      string
	Title        string
	Description  string
	Location     string
	PricePerHour Cents
	Available    bool
	Images       []SpaceImage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SpaceImage references an uploaded picture of a space.
type SpaceImage struct {
	ID        string
	SpaceID   string
	Path      string
	CreatedAt time.Time
}

// SpaceFilter narrows space listings.
type SpaceFilter struct {
	OwnerID       string
	AvailableOnly bool
}

// CreateSpaceParams wraps the data required to list a space.
type CreateSpaceParams struct {
	Principal Principal
	Input     SpaceInput
}

// UpdateSpaceParams wraps the data required to edit a listing.
type UpdateSpaceParams struct {
	Principal Principal
	SpaceID   string
	Input     SpaceInput
}

// SetAvailabilityParams archives or restores a listing. A nil Available
// toggles the current flag.
type SetAvailabilityParams struct {
	Principal Principal
	SpaceID   string
	Available *bool
}

// AddSpaceImageParams attaches an uploaded image to a listing.
type AddSpaceImageParams struct {
	Principal Principal
	SpaceID   string
	Path      string
}

// Booking is a reservation request on a space.
type Booking struct {
	ID           string
	SpaceID      string
	RenterID     string
	Start        time.Time
	End          time.Time
	DurationType scheduler.DurationType
	Status       scheduler.Status
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BookingInput captures the renter supplied booking request. End may be nil
// for the forever duration type.
type BookingInput struct {
	SpaceID      string
	Start        time.Time
	End          *time.Time
	DurationType scheduler.DurationType
}

// CreateBookingParams wraps the data required to request a booking.
type CreateBookingParams struct {
	Principal Principal
	Input     BookingInput
}

// BookingActionParams identifies the booking an owner or renter acts on.
type BookingActionParams struct {
	Principal Principal
	BookingID string
}

// ConflictWarning describes an approved booking overlapping a request. At
// creation time it is advisory only.
type ConflictWarning struct {
	BookingID string
	SpaceID   string
	Start     time.Time
	End       time.Time
}

// FindConflictsParams describes a conflict preview.
type FindConflictsParams struct {
	SpaceID          string
	Start            time.Time
	End              *time.Time
	DurationType     scheduler.DurationType
	ExcludeBookingID string
}

// BookingDetails is a booking together with the space it reserves.
type BookingDetails struct {
	Booking Booking
	Space   Space
}

// BookingFilter narrows booking queries at the repository boundary.
type BookingFilter struct {
	SpaceID  string
	RenterID string
	OwnerID  string
	Statuses []scheduler.Status
}

// BookingStatusChange is a compare-and-set status write.
type BookingStatusChange struct {
	BookingID       string
	From            scheduler.Status
	To              scheduler.Status
	ExpectedVersion int64
	UpdatedAt       time.Time
}

// BookingEventType names a booking lifecycle notification.
type BookingEventType string

const (
	BookingRequested BookingEventType = "booking.requested"
	BookingApproved  BookingEventType = "booking.approved"
	BookingDeclined  BookingEventType = "booking.declined"
	BookingCancelled BookingEventType = "booking.cancelled"
)

// BookingEvent is emitted after a booking mutation commits.
type BookingEvent struct {
	Type       BookingEventType
	Booking    Booking
	Space      Space
	ActorID    string
	OccurredAt time.Time
}
