package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/example/parkshare/internal/application"
)

// Mailer sends composed messages. *mail.Client satisfies it.
type Mailer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// UserDirectory resolves the addresses of the people an event concerns.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (application.User, error)
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewSMTPClient builds a go-mail client for config. Authentication is only
// enabled when a username is configured.
func NewSMTPClient(config SMTPConfig) (*mail.Client, error) {
	opts := []mail.Option{mail.WithPort(config.Port), mail.WithTLSPolicy(mail.TLSOpportunistic)}
	if config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}
	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: smtp client: %w", err)
	}
	return client, nil
}

// EmailNotifier mails the counterparty of a booking event: the owner hears
// about new and cancelled requests, the renter about approvals and declines.
type EmailNotifier struct {
	mailer Mailer
	users  UserDirectory
	from   string
}

// NewEmailNotifier returns a notifier sending from the given address.
func NewEmailNotifier(mailer Mailer, users UserDirectory, from string) *EmailNotifier {
	return &EmailNotifier{mailer: mailer, users: users, from: from}
}

// NotifyBooking implements application.Notifier.
func (n *EmailNotifier) NotifyBooking(ctx context.Context, event application.BookingEvent) error {
	recipientID, subject, ok := emailRouting(event)
	if !ok {
		return nil
	}

	recipient, err := n.users.GetUser(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("notify: resolve recipient %s: %w", recipientID, err)
	}

	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return fmt.Errorf("notify: from address: %w", err)
	}
	if err := msg.To(recipient.Email); err != nil {
		return fmt.Errorf("notify: to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, emailBody(recipient, event))

	if err := n.mailer.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("notify: send mail: %w", err)
	}
	return nil
}

func emailRouting(event application.BookingEvent) (recipientID, subject string, ok bool) {
	title := event.Space.Title
	switch event.Type {
	case application.BookingRequested:
		return event.Space.OwnerID, "New booking request for " + title, true
	case application.BookingCancelled:
		return event.Space.OwnerID, "Booking cancelled for " + title, true
	case application.BookingApproved:
		return event.Booking.RenterID, "Your booking for " + title + " was approved", true
	case application.BookingDeclined:
		return event.Booking.RenterID, "Your booking for " + title + " was declined", true
	}
	return "", "", false
}

func emailBody(recipient application.User, event application.BookingEvent) string {
	const layout = "2006-01-02 15:04 MST"
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", recipient.DisplayName)
	fmt.Fprintf(&b, "Space: %s (%s)\n", event.Space.Title, event.Space.Location)
	fmt.Fprintf(&b, "From:  %s\n", event.Booking.Start.UTC().Format(layout))
	fmt.Fprintf(&b, "Until: %s\n", event.Booking.End.UTC().Format(layout))
	fmt.Fprintf(&b, "Status: %s\n", event.Booking.Status)
	fmt.Fprintf(&b, "Reference: %s\n", event.Booking.ID)
	return b.String()
}
