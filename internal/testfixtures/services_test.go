package testfixtures

import (
	"context"
	"testing"

	"github.com/example/parkshare/internal/application"
)

type capturingUserRepo struct {
	created application.UserCredentials
}

func (c *capturingUserRepo) CreateUser(ctx context.Context, creds application.UserCredentials) (application.User, error) {
	c.created = creds
	return creds.User, nil
}

func (c *capturingUserRepo) GetUser(ctx context.Context, id string) (application.User, error) {
	return application.User{}, application.ErrNotFound
}

func TestServiceFactoryNewUserService(t *testing.T) {
	factory := NewServiceFactory()
	repo := &capturingUserRepo{}
	hash := func(password string) (string, error) { return "hashed:" + password, nil }

	svc := factory.NewUserService(UserServiceDeps{Users: repo, Hash: hash})

	user, err := svc.Register(context.Background(), application.RegisterUserParams{
		Email:       "user@example.com",
		DisplayName: "User",
		Password:    "password123",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if user.ID != "id-1" {
		t.Fatalf("expected generated ID id-1, got %q", user.ID)
	}
	if repo.created.User.ID != user.ID {
		t.Fatalf("repository received unexpected ID: %q", repo.created.User.ID)
	}
	if repo.created.PasswordHash != "hashed:password123" {
		t.Fatalf("expected injected hasher to be used, got %q", repo.created.PasswordHash)
	}
	if !user.CreatedAt.Equal(factory.Clock.Current()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Current(), user.CreatedAt)
	}
}

type fixedSpaces struct {
	space application.Space
}

func (f fixedSpaces) GetSpace(ctx context.Context, id string) (application.Space, error) {
	if id != f.space.ID {
		return application.Space{}, application.ErrNotFound
	}
	return f.space, nil
}

func TestServiceFactoryNewBookingService(t *testing.T) {
	factory := NewServiceFactory(WithIDGenerator(NewIDGenerator("booking")))
	space := NewSpaceFixture(WithSpaceOwner("owner"))

	svc := factory.NewBookingService(BookingServiceDeps{Spaces: fixedSpaces{space: space.Application()}})

	// Without a repository the service reports a configuration error.
	_, _, err := svc.CreateBooking(context.Background(), application.CreateBookingParams{
		Principal: application.Principal{UserID: "renter"},
	})
	if err == nil {
		t.Fatalf("expected error from booking service without repository")
	}
}
