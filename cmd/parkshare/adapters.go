package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/parkshare/internal/application"
	"github.com/example/parkshare/internal/persistence"
	"github.com/example/parkshare/internal/scheduler"
)

// storageError lifts persistence sentinels into their application
// counterparts while keeping the original error in the chain.
func storageError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, application.ErrNotFound),
		errors.Is(err, application.ErrStaleBooking),
		errors.Is(err, application.ErrAlreadyExists):
		return err
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %w", application.ErrNotFound, err)
	case errors.Is(err, persistence.ErrStaleVersion):
		return fmt.Errorf("%w: %w", application.ErrStaleBooking, err)
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %w", application.ErrAlreadyExists, err)
	}
	return err
}

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, creds application.UserCredentials) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(creds)); err != nil {
		return application.User{}, storageError(err)
	}
	return a.GetUser(ctx, creds.User.ID)
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, storageError(err)
	}
	return toApplicationUser(stored), nil
}

// GetUserCredentialsByEmail lets the adapter double as the auth credential store.
func (a *userRepositoryAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, storageError(err)
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
		Disabled:     stored.Disabled,
	}, nil
}

func (a *userRepositoryAdapter) UpdatePasswordHash(ctx context.Context, userID, hash string, at time.Time) error {
	stored, err := a.repo.GetUser(ctx, userID)
	if err != nil {
		return storageError(err)
	}
	stored.PasswordHash = hash
	stored.UpdatedAt = at
	return storageError(a.repo.UpdateUser(ctx, stored))
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, persistence.Session(session))
	if err != nil {
		return application.Session{}, storageError(err)
	}
	return application.Session(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, storageError(err)
	}
	return application.Session(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, storageError(err)
	}
	return application.Session(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error) {
	removed, err := a.repo.DeleteExpiredSessions(ctx, reference)
	return removed, storageError(err)
}

type spaceRepositoryAdapter struct {
	repo persistence.SpaceRepository
}

func newSpaceRepositoryAdapter(repo persistence.SpaceRepository) *spaceRepositoryAdapter {
	return &spaceRepositoryAdapter{repo: repo}
}

func (a *spaceRepositoryAdapter) CreateSpace(ctx context.Context, space application.Space) (application.Space, error) {
	if err := a.repo.CreateSpace(ctx, toPersistenceSpace(space)); err != nil {
		return application.Space{}, storageError(err)
	}
	return a.GetSpace(ctx, space.ID)
}

func (a *spaceRepositoryAdapter) GetSpace(ctx context.Context, id string) (application.Space, error) {
	stored, err := a.repo.GetSpace(ctx, id)
	if err != nil {
		return application.Space{}, storageError(err)
	}
	return a.withImages(ctx, stored)
}

func (a *spaceRepositoryAdapter) UpdateSpace(ctx context.Context, space application.Space) (application.Space, error) {
	if err := a.repo.UpdateSpace(ctx, toPersistenceSpace(space)); err != nil {
		return application.Space{}, storageError(err)
	}
	return a.GetSpace(ctx, space.ID)
}

func (a *spaceRepositoryAdapter) DeleteSpace(ctx context.Context, id string) error {
	return storageError(a.repo.DeleteSpace(ctx, id))
}

func (a *spaceRepositoryAdapter) ListSpaces(ctx context.Context, filter application.SpaceFilter) ([]application.Space, error) {
	stored, err := a.repo.ListSpaces(ctx, persistence.SpaceFilter{
		OwnerID:       filter.OwnerID,
		AvailableOnly: filter.AvailableOnly,
	})
	if err != nil {
		return nil, storageError(err)
	}

	spaces := make([]application.Space, 0, len(stored))
	for _, item := range stored {
		space, err := a.withImages(ctx, item)
		if err != nil {
			return nil, err
		}
		spaces = append(spaces, space)
	}
	return spaces, nil
}

func (a *spaceRepositoryAdapter) AddSpaceImage(ctx context.Context, image application.SpaceImage) (application.SpaceImage, error) {
	if err := a.repo.AddSpaceImage(ctx, persistence.SpaceImage(image)); err != nil {
		return application.SpaceImage{}, storageError(err)
	}
	return image, nil
}

func (a *spaceRepositoryAdapter) ListSpaceImages(ctx context.Context, spaceID string) ([]application.SpaceImage, error) {
	stored, err := a.repo.ListSpaceImages(ctx, spaceID)
	if err != nil {
		return nil, storageError(err)
	}
	images := make([]application.SpaceImage, 0, len(stored))
	for _, image := range stored {
		images = append(images, application.SpaceImage(image))
	}
	return images, nil
}

func (a *spaceRepositoryAdapter) withImages(ctx context.Context, stored persistence.Space) (application.Space, error) {
	space := toApplicationSpace(stored)
	images, err := a.ListSpaceImages(ctx, stored.ID)
	if err != nil {
		return application.Space{}, err
	}
	space.Images = images
	return space, nil
}

type bookingRepositoryAdapter struct {
	repo persistence.BookingRepository
}

func newBookingRepositoryAdapter(repo persistence.BookingRepository) *bookingRepositoryAdapter {
	return &bookingRepositoryAdapter{repo: repo}
}

func (a *bookingRepositoryAdapter) CreateBooking(ctx context.Context, booking application.Booking) (application.Booking, error) {
	if err := a.repo.CreateBooking(ctx, toPersistenceBooking(booking)); err != nil {
		return application.Booking{}, storageError(err)
	}
	return a.GetBooking(ctx, booking.ID)
}

func (a *bookingRepositoryAdapter) GetBooking(ctx context.Context, id string) (application.Booking, error) {
	return bookingTxAdapter{tx: a.repo}.GetBooking(ctx, id)
}

func (a *bookingRepositoryAdapter) ListBookings(ctx context.Context, filter application.BookingFilter) ([]application.Booking, error) {
	return bookingTxAdapter{tx: a.repo}.ListBookings(ctx, filter)
}

func (a *bookingRepositoryAdapter) UpdateBookingStatus(ctx context.Context, change application.BookingStatusChange) (application.Booking, error) {
	return bookingTxAdapter{tx: a.repo}.UpdateBookingStatus(ctx, change)
}

func (a *bookingRepositoryAdapter) WithinSpaceTx(ctx context.Context, spaceID string, fn func(tx application.BookingTx) error) error {
	err := a.repo.WithinSpaceTx(ctx, spaceID, func(tx persistence.BookingTx) error {
		return fn(bookingTxAdapter{tx: tx})
	})
	return storageError(err)
}

// bookingTxAdapter serves both the plain repository and the transactional
// view, which share the persistence.BookingTx method set.
type bookingTxAdapter struct {
	tx persistence.BookingTx
}

func (a bookingTxAdapter) GetBooking(ctx context.Context, id string) (application.Booking, error) {
	stored, err := a.tx.GetBooking(ctx, id)
	if err != nil {
		return application.Booking{}, storageError(err)
	}
	return toApplicationBooking(stored), nil
}

func (a bookingTxAdapter) ListBookings(ctx context.Context, filter application.BookingFilter) ([]application.Booking, error) {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, status := range filter.Statuses {
		statuses = append(statuses, string(status))
	}
	stored, err := a.tx.ListBookings(ctx, persistence.BookingFilter{
		SpaceID:  filter.SpaceID,
		RenterID: filter.RenterID,
		OwnerID:  filter.OwnerID,
		Statuses: statuses,
	})
	if err != nil {
		return nil, storageError(err)
	}

	bookings := make([]application.Booking, 0, len(stored))
	for _, booking := range stored {
		bookings = append(bookings, toApplicationBooking(booking))
	}
	return bookings, nil
}

func (a bookingTxAdapter) UpdateBookingStatus(ctx context.Context, change application.BookingStatusChange) (application.Booking, error) {
	stored, err := a.tx.UpdateBookingStatus(ctx, persistence.StatusChange{
		BookingID:       change.BookingID,
		From:            string(change.From),
		To:              string(change.To),
		ExpectedVersion: change.ExpectedVersion,
		UpdatedAt:       change.UpdatedAt,
	})
	if err != nil {
		return application.Booking{}, storageError(err)
	}
	return toApplicationBooking(stored), nil
}

func toPersistenceUser(creds application.UserCredentials) persistence.User {
	return persistence.User{
		ID:           creds.User.ID,
		Email:        creds.User.Email,
		DisplayName:  creds.User.DisplayName,
		PasswordHash: creds.PasswordHash,
		IsAdmin:      creds.User.IsAdmin,
		Disabled:     creds.Disabled,
		CreatedAt:    creds.User.CreatedAt,
		UpdatedAt:    creds.User.UpdatedAt,
	}
}

func toApplicationUser(user persistence.User) application.User {
	return application.User{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		IsAdmin:     user.IsAdmin,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

func toPersistenceSpace(space application.Space) persistence.Space {
	return persistence.Space{
		ID:          space.ID,
		OwnerID:     space.OwnerID,
		Title:       space.Title,
		Description: space.Description,
		Location:    space.Location,
		PriceCents:  int64(space.PricePerHour),
		Available:   space.Available,
		CreatedAt:   space.CreatedAt,
		UpdatedAt:   space.UpdatedAt,
	}
}

func toApplicationSpace(space persistence.Space) application.Space {
	return application.Space{
		ID:           space.ID,
		OwnerID:      space.OwnerID,
		Title:        space.Title,
		Description:  space.Description,
		Location:     space.Location,
		PricePerHour: application.Cents(space.PriceCents),
		Available:    space.Available,
		CreatedAt:    space.CreatedAt,
		UpdatedAt:    space.UpdatedAt,
	}
}

func toPersistenceBooking(booking application.Booking) persistence.Booking {
	return persistence.Booking{
		ID:           booking.ID,
		SpaceID:      booking.SpaceID,
		RenterID:     booking.RenterID,
		Start:        booking.Start,
		End:          booking.End,
		DurationType: string(booking.DurationType),
		Status:       string(booking.Status),
		Version:      booking.Version,
		CreatedAt:    booking.CreatedAt,
		UpdatedAt:    booking.UpdatedAt,
	}
}

func toApplicationBooking(booking persistence.Booking) application.Booking {
	return application.Booking{
		ID:           booking.ID,
		SpaceID:      booking.SpaceID,
		RenterID:     booking.RenterID,
		Start:        booking.Start,
		End:          booking.End,
		DurationType: scheduler.DurationType(booking.DurationType),
		Status:       scheduler.Status(booking.Status),
		Version:      booking.Version,
		CreatedAt:    booking.CreatedAt,
		UpdatedAt:    booking.UpdatedAt,
	}
}
