package models

import "time"

// NotificationType classifies a notification for front-end rendering.
type NotificationType string

const (
	NotificationTypeInfo    NotificationType = "info"
	NotificationTypeSuccess NotificationType = "success"
	NotificationTypeWarning NotificationType = "warning"
	NotificationTypeError   NotificationType = "error"
)

// Valid reports whether the type is one of the known types.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeInfo, NotificationTypeSuccess, NotificationTypeWarning, NotificationTypeError:
		return true
	}
	return false
}

// Notification is a persisted message addressed to a single user. Rows double
// as the outbox consumed by the dispatcher; dispatched_at records hand-off to
// the outbound transport.
type Notification struct {
	ID           string           `db:"id" json:"id"`
	UserID       string           `db:"user_id" json:"user_id"`
	Title        string           `db:"title" json:"title"`
	Message      string           `db:"message" json:"message"`
	Type         NotificationType `db:"type" json:"type"`
	IsRead       bool             `db:"is_read" json:"is_read"`
	DispatchedAt *time.Time       `db:"dispatched_at" json:"-"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter pages through a user's notifications.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
