package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/parkshare/internal/application"
	"github.com/example/parkshare/internal/scheduler"
)

var refTime = time.Date(2030, 6, 1, 9, 0, 0, 0, time.UTC)

type stubAuthService struct {
	authenticate func(context.Context, application.AuthenticateParams) (application.AuthenticateResult, error)
	revoked      []string
}

func (s *stubAuthService) Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	return s.authenticate(ctx, params)
}

func (s *stubAuthService) RevokeSession(_ context.Context, token string) error {
	s.revoked = append(s.revoked, token)
	return nil
}

func (s *stubAuthService) ValidateSession(_ context.Context, token string) (application.Principal, error) {
	if token == "valid-token" {
		return application.Principal{UserID: "renter-1"}, nil
	}
	return application.Principal{}, application.ErrSessionExpired
}

type stubUserService struct {
	got application.RegisterUserParams
	err error
}

func (s *stubUserService) Register(_ context.Context, params application.RegisterUserParams) (application.User, error) {
	s.got = params
	if s.err != nil {
		return application.User{}, s.err
	}
	return application.User{ID: "user-1", Email: params.Email, DisplayName: params.DisplayName, CreatedAt: refTime}, nil
}

type stubSpaceService struct {
	spaceService
	created      application.CreateSpaceParams
	availability application.SetAvailabilityParams
	err          error
}

func (s *stubSpaceService) CreateSpace(_ context.Context, params application.CreateSpaceParams) (application.Space, error) {
	s.created = params
	if s.err != nil {
		return application.Space{}, s.err
	}
	return application.Space{
		ID:           "space-1",
		OwnerID:      params.Principal.UserID,
		Title:        params.Input.Title,
		Description:  params.Input.Description,
		Location:     params.Input.Location,
		PricePerHour: params.Input.PricePerHour,
		Available:    true,
	}, nil
}

func (s *stubSpaceService) SetAvailability(_ context.Context, params application.SetAvailabilityParams) (application.Space, error) {
	s.availability = params
	return application.Space{ID: params.SpaceID, Available: false}, s.err
}

func (s *stubSpaceService) ListAvailableSpaces(context.Context) ([]application.Space, error) {
	return []application.Space{{ID: "space-1", Title: "Garage", PricePerHour: 450, Available: true}}, s.err
}

func (s *stubSpaceService) DeleteSpace(context.Context, application.Principal, string) error {
	return s.err
}

type stubBookingService struct {
	bookingService
	createParams  application.CreateBookingParams
	createResult  application.Booking
	warnings      []application.ConflictWarning
	conflictsArgs application.FindConflictsParams
	actionParams  application.BookingActionParams
	err           error
}

func (s *stubBookingService) CreateBooking(_ context.Context, params application.CreateBookingParams) (application.Booking, []application.ConflictWarning, error) {
	s.createParams = params
	return s.createResult, s.warnings, s.err
}

func (s *stubBookingService) ApproveBooking(_ context.Context, params application.BookingActionParams) (application.Booking, error) {
	s.actionParams = params
	if s.err != nil {
		return application.Booking{}, s.err
	}
	return application.Booking{ID: params.BookingID, Status: scheduler.StatusApproved, Version: 2}, nil
}

func (s *stubBookingService) CancelBooking(_ context.Context, params application.BookingActionParams) (application.Booking, error) {
	s.actionParams = params
	return application.Booking{}, s.err
}

func (s *stubBookingService) FindConflicts(_ context.Context, params application.FindConflictsParams) ([]application.ConflictWarning, error) {
	s.conflictsArgs = params
	return s.warnings, s.err
}

func (s *stubBookingService) ListBookingsForRenter(_ context.Context, principal application.Principal) ([]application.Booking, error) {
	return []application.Booking{{ID: "booking-1", RenterID: principal.UserID, Status: scheduler.StatusPending}}, nil
}

func withPrincipal(r *http.Request, userID string) *http.Request {
	return r.WithContext(ContextWithPrincipal(r.Context(), application.Principal{UserID: userID}))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst))
}

func TestAuthHandlers(t *testing.T) {
	t.Parallel()

	t.Run("login issues session token via cookie and header", func(t *testing.T) {
		t.Parallel()

		auth := &stubAuthService{authenticate: func(_ context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
			assert.Equal(t, "renter@example.com", params.Email)
			assert.Equal(t, "test-agent", params.Fingerprint)
			return application.AuthenticateResult{
				User:    application.User{ID: "user-1", Email: params.Email},
				Session: application.Session{Token: "token-1", ExpiresAt: refTime.Add(time.Hour)},
			}, nil
		}}
		handler := NewAuthHandler(auth, &stubUserService{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"Renter@Example.com","password":"secret-password"}`))
		req.Header.Set("User-Agent", "test-agent")
		rec := httptest.NewRecorder()
		handler.Login(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "token-1", rec.Header().Get("X-Session-Token"))
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "session_token", cookies[0].Name)
		assert.Equal(t, "token-1", cookies[0].Value)

		var body loginResponse
		decodeBody(t, rec, &body)
		assert.Equal(t, "user-1", body.User.ID)
	})

	t.Run("login rejects invalid credentials", func(t *testing.T) {
		t.Parallel()

		auth := &stubAuthService{authenticate: func(context.Context, application.AuthenticateParams) (application.AuthenticateResult, error) {
			return application.AuthenticateResult{}, application.ErrInvalidCredentials
		}}
		handler := NewAuthHandler(auth, &stubUserService{}, nil)

		rec := httptest.NewRecorder()
		handler.Login(rec, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"a@example.com","password":"wrong"}`)))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		var body errorResponse
		decodeBody(t, rec, &body)
		assert.Equal(t, "INVALID_CREDENTIALS", body.ErrorCode)
	})

	t.Run("logout revokes the session", func(t *testing.T) {
		t.Parallel()

		auth := &stubAuthService{}
		handler := NewAuthHandler(auth, &stubUserService{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/logout", nil)
		req.Header.Set("Authorization", "Bearer token-1")
		rec := httptest.NewRecorder()
		handler.Logout(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, []string{"token-1"}, auth.revoked)
	})

	t.Run("logout without token is unauthorized", func(t *testing.T) {
		t.Parallel()

		handler := NewAuthHandler(&stubAuthService{}, &stubUserService{}, nil)
		rec := httptest.NewRecorder()
		handler.Logout(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("signup reports field errors by json name", func(t *testing.T) {
		t.Parallel()

		users := &stubUserService{}
		handler := NewAuthHandler(&stubAuthService{}, users, nil)
		rec := httptest.NewRecorder()
		handler.Signup(rec, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(`{"email":"not-an-email","display_name":"Ann","password":"short"}`)))

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var body errorResponse
		decodeBody(t, rec, &body)
		assert.Equal(t, "VALIDATION", body.ErrorCode)
		assert.Contains(t, body.Errors, "email")
		assert.Contains(t, body.Errors, "password")
		assert.Empty(t, users.got.Email)
	})

	t.Run("signup with taken email conflicts", func(t *testing.T) {
		t.Parallel()

		handler := NewAuthHandler(&stubAuthService{}, &stubUserService{err: application.ErrAlreadyExists}, nil)
		rec := httptest.NewRecorder()
		handler.Signup(rec, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(`{"email":"ann@example.com","display_name":"Ann","password":"long-enough"}`)))

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		t.Parallel()

		handler := NewAuthHandler(&stubAuthService{}, &stubUserService{}, nil)
		rec := httptest.NewRecorder()
		handler.Signup(rec, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(`{"email":`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSpaceHandlers(t *testing.T) {
	t.Parallel()

	t.Run("create parses the decimal price", func(t *testing.T) {
		t.Parallel()

		spaces := &stubSpaceService{}
		handler := NewSpaceHandler(spaces, nil)
		req := withPrincipal(httptest.NewRequest(http.MethodPost, "/spaces", strings.NewReader(
			`{"title":"Garage","description":"Covered","location":"Dock Road","price_per_hour":"4.5"}`)), "owner-1")
		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, application.Cents(450), spaces.created.Input.PricePerHour)
		assert.Equal(t, "owner-1", spaces.created.Principal.UserID)

		var body spaceResponse
		decodeBody(t, rec, &body)
		assert.Equal(t, "4.50", body.Space.PricePerHour)
	})

	t.Run("create rejects malformed price", func(t *testing.T) {
		t.Parallel()

		handler := NewSpaceHandler(&stubSpaceService{}, nil)
		req := withPrincipal(httptest.NewRequest(http.MethodPost, "/spaces", strings.NewReader(
			`{"title":"Garage","description":"Covered","location":"Dock Road","price_per_hour":"4.555"}`)), "owner-1")
		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var body errorResponse
		decodeBody(t, rec, &body)
		assert.Contains(t, body.Errors, "price_per_hour")
	})

	t.Run("empty availability body toggles", func(t *testing.T) {
		t.Parallel()

		spaces := &stubSpaceService{}
		router := NewRouter(RouterConfig{Spaces: NewSpaceHandler(spaces, nil)})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/spaces/space-9/availability", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "space-9", spaces.availability.SpaceID)
		assert.Nil(t, spaces.availability.Available)
	})

	t.Run("delete by non-owner is forbidden", func(t *testing.T) {
		t.Parallel()

		router := NewRouter(RouterConfig{Spaces: NewSpaceHandler(&stubSpaceService{err: application.ErrNotOwner}, nil)})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/spaces/space-1", nil))

		require.Equal(t, http.StatusForbidden, rec.Code)
		var body errorResponse
		decodeBody(t, rec, &body)
		assert.Equal(t, "NOT_OWNER", body.ErrorCode)
	})
}

func TestBookingHandlers(t *testing.T) {
	t.Parallel()

	t.Run("create serializes conflict warnings", func(t *testing.T) {
		t.Parallel()

		bookings := &stubBookingService{
			createResult: application.Booking{ID: "booking-2", SpaceID: "space-1", Status: scheduler.StatusPending, Version: 1},
			warnings: []application.ConflictWarning{{
				BookingID: "booking-1",
				SpaceID:   "space-1",
				Start:     refTime,
				End:       refTime.Add(2 * time.Hour),
			}},
		}
		router := NewRouter(RouterConfig{Bookings: NewBookingHandler(bookings, nil)})

		req := withPrincipal(httptest.NewRequest(http.MethodPost, "/spaces/space-1/bookings", strings.NewReader(
			`{"start":"2030-06-01T10:00:00+02:00","end":"2030-06-01T12:00:00Z","duration_type":"hour"}`)), "renter-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "space-1", bookings.createParams.Input.SpaceID)
		assert.True(t, bookings.createParams.Input.Start.Equal(time.Date(2030, 6, 1, 8, 0, 0, 0, time.UTC)))
		require.NotNil(t, bookings.createParams.Input.End)
		assert.Equal(t, scheduler.DurationHour, bookings.createParams.Input.DurationType)

		var body bookingCreatedResponse
		decodeBody(t, rec, &body)
		assert.Equal(t, "booking-2", body.Booking.ID)
		assert.Equal(t, "pending", body.Booking.Status)
		require.Len(t, body.Warnings, 1)
		assert.Equal(t, "booking-1", body.Warnings[0].BookingID)
	})

	t.Run("create rejects unknown duration type", func(t *testing.T) {
		t.Parallel()

		handler := NewBookingHandler(&stubBookingService{}, nil)
		req := httptest.NewRequest(http.MethodPost, "/spaces/space-1/bookings", strings.NewReader(
			`{"start":"2030-06-01T10:00:00Z","duration_type":"week"}`))
		req.SetPathValue("id", "space-1")
		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var body errorResponse
		decodeBody(t, rec, &body)
		assert.Contains(t, body.Errors, "duration_type")
	})

	t.Run("map domain errors to HTTP status codes", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name   string
			err    error
			status int
			code   string
		}{
			{"past start", application.ErrPastStart, http.StatusUnprocessableEntity, "PAST_START"},
			{"invalid range", application.ErrInvalidRange, http.StatusUnprocessableEntity, "INVALID_RANGE"},
			{"missing end", application.ErrMissingEnd, http.StatusUnprocessableEntity, "MISSING_END"},
			{"unavailable", application.ErrSpaceUnavailable, http.StatusConflict, "SPACE_UNAVAILABLE"},
			{"not found", application.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
			{"unexpected", errors.New("disk full"), http.StatusInternalServerError, "UNEXPECTED"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				handler := NewBookingHandler(&stubBookingService{err: tt.err}, nil)
				req := httptest.NewRequest(http.MethodPost, "/spaces/space-1/bookings", strings.NewReader(
					`{"start":"2030-06-01T10:00:00Z","end":"2030-06-01T11:00:00Z","duration_type":"hour"}`))
				req.SetPathValue("id", "space-1")
				rec := httptest.NewRecorder()
				handler.Create(rec, req)

				require.Equal(t, tt.status, rec.Code)
				var body errorResponse
				decodeBody(t, rec, &body)
				assert.Equal(t, tt.code, body.ErrorCode)
			})
		}
	})

	t.Run("approve over an approved booking lists the conflicts", func(t *testing.T) {
		t.Parallel()

		conflict := &application.ConflictError{
			ResourceID: "space-1",
			Conflicts: []scheduler.Booking{{
				ID:         "booking-1",
				ResourceID: "space-1",
				Status:     scheduler.StatusApproved,
				Start:      refTime,
				End:        refTime.Add(time.Hour),
			}},
		}
		bookings := &stubBookingService{err: conflict}
		router := NewRouter(RouterConfig{Bookings: NewBookingHandler(bookings, nil)})

		req := withPrincipal(httptest.NewRequest(http.MethodPost, "/bookings/booking-2/approve", nil), "owner-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "booking-2", bookings.actionParams.BookingID)
		assert.Equal(t, "owner-1", bookings.actionParams.Principal.UserID)

		var body errorResponse
		decodeBody(t, rec, &body)
		assert.Equal(t, "CONFLICT", body.ErrorCode)
		require.Len(t, body.Conflicts, 1)
		assert.Equal(t, "booking-1", body.Conflicts[0].BookingID)
		assert.Equal(t, "2030-06-01T09:00:00Z", body.Conflicts[0].Start)
	})

	t.Run("approve returns the updated booking", func(t *testing.T) {
		t.Parallel()

		router := NewRouter(RouterConfig{Bookings: NewBookingHandler(&stubBookingService{}, nil)})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bookings/booking-2/approve", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body bookingResponse
		decodeBody(t, rec, &body)
		assert.Equal(t, "approved", body.Booking.Status)
		assert.Equal(t, int64(2), body.Booking.Version)
	})

	t.Run("cancel of a settled booking is an invalid transition", func(t *testing.T) {
		t.Parallel()

		err := &application.TransitionError{From: scheduler.StatusApproved, To: scheduler.StatusCancelled}
		router := NewRouter(RouterConfig{Bookings: NewBookingHandler(&stubBookingService{err: err}, nil)})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bookings/booking-1/cancel", nil))

		require.Equal(t, http.StatusConflict, rec.Code)
		var body errorResponse
		decodeBody(t, rec, &body)
		assert.Equal(t, "INVALID_TRANSITION", body.ErrorCode)
	})

	t.Run("conflict preview reads the query string", func(t *testing.T) {
		t.Parallel()

		bookings := &stubBookingService{warnings: []application.ConflictWarning{{BookingID: "booking-1", Start: refTime, End: refTime.Add(time.Hour)}}}
		router := NewRouter(RouterConfig{Bookings: NewBookingHandler(bookings, nil)})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/spaces/space-1/conflicts?start=2030-06-01T09:30:00Z&duration_type=forever", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, scheduler.DurationForever, bookings.conflictsArgs.DurationType)
		assert.Nil(t, bookings.conflictsArgs.End)

		var body conflictListResponse
		decodeBody(t, rec, &body)
		require.Len(t, body.Conflicts, 1)
	})

	t.Run("conflict preview requires start", func(t *testing.T) {
		t.Parallel()

		router := NewRouter(RouterConfig{Bookings: NewBookingHandler(&stubBookingService{}, nil)})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/spaces/space-1/conflicts?duration_type=hour", nil))

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestRouter(t *testing.T) {
	t.Parallel()

	auth := &stubAuthService{}
	router := NewRouter(RouterConfig{
		Spaces:         NewSpaceHandler(&stubSpaceService{}, nil),
		Bookings:       NewBookingHandler(&stubBookingService{}, nil),
		RequireSession: RequireSession(auth, nil),
	})

	t.Run("public listing needs no session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/spaces", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body spaceListResponse
		decodeBody(t, rec, &body)
		require.Len(t, body.Spaces, 1)
		assert.Equal(t, "4.50", body.Spaces[0].PricePerHour)
	})

	t.Run("protected routes require a session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/my-bookings", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("session principal reaches the handler", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/my-bookings", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var body bookingListResponse
		decodeBody(t, rec, &body)
		require.Len(t, body.Bookings, 1)
		assert.Equal(t, "renter-1", body.Bookings[0].RenterID)
	})

	t.Run("wrong method is rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/spaces", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
