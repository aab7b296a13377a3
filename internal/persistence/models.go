package persistence

import "time"

// User represents a marketplace account. Any user may list spaces and book them.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session represents an authentication session persisted for a user.
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

// Space represents a parking space listing.
type Space struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Location    string
	PriceCents  int64
	Available   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SpaceImage references an uploaded picture of a space.
type SpaceImage struct {
	ID        string
	SpaceID   string
	Path      string
	CreatedAt time.Time
}

// Booking represents a reservation request for a space.
type Booking struct {
	ID           string
	SpaceID      string
	RenterID     string
	Start        time.Time
	End          time.Time
	DurationType string
	Status       string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
