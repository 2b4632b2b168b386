// Package mail provides the outbound transport the notification dispatcher
// and OTP reset flow hand messages to. The transport is a thin sink; nothing
// in the workflow depends on delivery succeeding.
package mail

import "context"

// Message is a rendered outbound email.
type Message struct {
	ToName    string
	ToAddress string
	Subject   string
	Body      string
}

// Transport delivers messages to the outside world.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}
