package mail

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sgSender interface {
	Send(m *sgmail.SGMailV3) (*rest.Response, error)
}

// SendGridTransport delivers messages through the SendGrid v3 API.
type SendGridTransport struct {
	client sgSender
	from   *sgmail.Email
}

// NewSendGridTransport builds a SendGrid-backed transport.
func NewSendGridTransport(apiKey, fromName, fromAddress string) *SendGridTransport {
	return &SendGridTransport{
		client: sendgrid.NewSendClient(apiKey),
		from:   sgmail.NewEmail(fromName, fromAddress),
	}
}

// Send delivers a single message. The SendGrid client manages its own request
// deadline, so the context is only consulted for early cancellation.
func (t *SendGridTransport) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := sgmail.NewEmail(msg.ToName, msg.ToAddress)
	m := sgmail.NewSingleEmail(t.from, msg.Subject, to, msg.Body, "")

	resp, err := t.client.Send(m)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
