package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Mailer sends outbound mail. The SMTP relay behind it is an external
// collaborator; tests and development use the logging implementation.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer is a Mailer that only logs the message. Used in development
// and as the default when no relay is configured.
type LogMailer struct {
	Logger *slog.Logger
}

// Send implements Mailer by logging the outbound message.
func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.Logger.Info("sending email",
		"to", to,
		"subject", subject,
		"body_length", len(body))
	return nil
}

// WelcomeEmailPayload is the payload for TypeWelcomeEmail tasks.
type WelcomeEmailPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
}

// NewWelcomeEmailDefinition builds the welcome-email task definition.
// Mail delivery is flaky by nature, so the definition retries.
func NewWelcomeEmailDefinition(mailer Mailer) Definition {
	return Definition{
		Type: TypeWelcomeEmail,
		Retry: RetryPolicy{
			MaxAttempts: 3,
			Backoff:     30 * time.Second,
		},
		Handler: func(ctx context.Context, payload []byte) error {
			var p WelcomeEmailPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("invalid welcome email payload: %w", err)
			}

			subject := "Welcome!"
			body := fmt.Sprintf("Hi %s,\n\nYour account is ready.\n", p.FullName)
			return mailer.Send(ctx, p.Email, subject, body)
		},
	}
}

// OrderConfirmationPayload is the payload for TypeOrderConfirmation tasks.
type OrderConfirmationPayload struct {
	OrderID     uuid.UUID `json:"order_id"`
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	TotalAmount float64   `json:"total_amount"`
}

// NewOrderConfirmationDefinition builds the order-confirmation task
// definition.
func NewOrderConfirmationDefinition(mailer Mailer) Definition {
	return Definition{
		Type: TypeOrderConfirmation,
		Retry: RetryPolicy{
			MaxAttempts: 3,
			Backoff:     30 * time.Second,
		},
		Handler: func(ctx context.Context, payload []byte) error {
			var p OrderConfirmationPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("invalid order confirmation payload: %w", err)
			}

			subject := fmt.Sprintf("Order %s confirmed", p.OrderID)
			body := fmt.Sprintf("Your order for %.2f has been received.\n", p.TotalAmount)
			return mailer.Send(ctx, p.Email, subject, body)
		},
	}
}
