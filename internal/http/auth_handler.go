package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/parkshare/internal/application"
)

type authService interface {
	Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error)
	RevokeSession(ctx context.Context, token string) error
}

type registrationService interface {
	Register(ctx context.Context, params application.RegisterUserParams) (application.User, error)
}

// AuthHandler serves signup, login and logout.
type AuthHandler struct {
	service   authService
	users     registrationService
	responder responder
	logger    *slog.Logger
}

func NewAuthHandler(service authService, users registrationService, logger *slog.Logger) *AuthHandler {
	base := defaultLogger(logger)
	return &AuthHandler{service: service, users: users, responder: newResponder(base), logger: base}
}

func (h *AuthHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "AuthHandler", operation, attrs...)
}

func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	logger.WarnContext(r.Context(), "request rejected", "error", err, "error_kind", application.ErrorKind(err))
	h.responder.handleServiceError(r.Context(), w, err)
}

// Signup registers a new account. It does not log the user in.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.users == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req signupRequest
	if err := decodeRequest(r, &req); err != nil {
		h.fail(w, r, h.log(r.Context(), "Signup"), err)
		return
	}
	logger := h.log(r.Context(), "Signup", "email", req.normalizedEmail())

	user, err := h.users.Register(r.Context(), application.RegisterUserParams{
		Email:       req.normalizedEmail(),
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		h.fail(w, r, logger, err)
		return
	}

	logger.InfoContext(r.Context(), "account created", "user_id", user.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, userResponse{User: toUserDTO(user)})
}

// Login exchanges credentials for a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req loginRequest
	if err := decodeRequest(r, &req); err != nil {
		h.fail(w, r, h.log(r.Context(), "Login"), err)
		return
	}
	logger := h.log(r.Context(), "Login", "email", req.normalizedEmail())

	result, err := h.service.Authenticate(r.Context(), application.AuthenticateParams{
		Email:       req.normalizedEmail(),
		Password:    req.Password,
		Fingerprint: r.UserAgent(),
	})
	if err != nil {
		h.fail(w, r, logger, err)
		return
	}

	handOutSession(w, result.Session.Token, result.Session.ExpiresAt)
	logger.InfoContext(r.Context(), "logged in", "user_id", result.User.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, loginResponse{
		Token:     result.Session.Token,
		ExpiresAt: result.Session.ExpiresAt.UTC().Format(time.RFC3339Nano),
		User:      toUserDTO(result.User),
	})
}

// Logout revokes the caller's session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token := sessionToken(r)
	if token == "" {
		h.responder.unauthenticated(r.Context(), w, errMissingSessionToken.Error())
		return
	}
	logger := h.log(r.Context(), "Logout")

	if err := h.service.RevokeSession(r.Context(), token); err != nil {
		h.fail(w, r, logger, err)
		return
	}

	dropSession(w)
	logger.InfoContext(r.Context(), "logged out")
	w.WriteHeader(http.StatusNoContent)
}

type signupRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required,max=100"`
	Password    string `json:"password" validate:"required,min=8"`
}

func (r signupRequest) normalizedEmail() string { return strings.ToLower(strings.TrimSpace(r.Email)) }

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r loginRequest) normalizedEmail() string { return strings.ToLower(strings.TrimSpace(r.Email)) }

type loginResponse struct {
	Token     string  `json:"token"`
	ExpiresAt string  `json:"expires_at"`
	User      userDTO `json:"user"`
}

type userDTO struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	IsAdmin     bool   `json:"is_admin"`
	CreatedAt   string `json:"created_at"`
}

type userResponse struct {
	User userDTO `json:"user"`
}

func toUserDTO(user application.User) userDTO {
	return userDTO{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		IsAdmin:     user.IsAdmin,
		CreatedAt:   formatTime(user.CreatedAt),
	}
}
