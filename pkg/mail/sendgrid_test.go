package mail

import (
	"context"
	"testing"

	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSGClient struct {
	sent   *sgmail.SGMailV3
	status int
	body   string
	err    error
}

func (f *fakeSGClient) Send(m *sgmail.SGMailV3) (*rest.Response, error) {
	f.sent = m
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status, Body: f.body}, nil
}

func TestSendGridTransportSend(t *testing.T) {
	client := &fakeSGClient{status: 202}
	transport := &SendGridTransport{
		client: client,
		from:   sgmail.NewEmail("AgriQuest", "no-reply@agriquest.io"),
	}

	err := transport.Send(context.Background(), Message{
		ToName:    "Sam Student",
		ToAddress: "sam@example.com",
		Subject:   "Enrollment Approved",
		Body:      "Your request was approved.",
	})
	require.NoError(t, err)
	require.NotNil(t, client.sent)

	assert.Equal(t, "Enrollment Approved", client.sent.Subject)
	assert.Equal(t, "no-reply@agriquest.io", client.sent.From.Address)
	require.Len(t, client.sent.Personalizations, 1)
	require.Len(t, client.sent.Personalizations[0].To, 1)
	assert.Equal(t, "sam@example.com", client.sent.Personalizations[0].To[0].Address)
	require.NotEmpty(t, client.sent.Content)
	assert.Equal(t, "Your request was approved.", client.sent.Content[0].Value)
}

func TestSendGridTransportRejectedStatus(t *testing.T) {
	client := &fakeSGClient{status: 401, body: "unauthorized"}
	transport := &SendGridTransport{
		client: client,
		from:   sgmail.NewEmail("AgriQuest", "no-reply@agriquest.io"),
	}

	err := transport.Send(context.Background(), Message{ToAddress: "sam@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestSendGridTransportCancelledContext(t *testing.T) {
	client := &fakeSGClient{status: 202}
	transport := &SendGridTransport{
		client: client,
		from:   sgmail.NewEmail("AgriQuest", "no-reply@agriquest.io"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := transport.Send(ctx, Message{ToAddress: "sam@example.com"})
	require.Error(t, err)
	assert.Nil(t, client.sent)
}
