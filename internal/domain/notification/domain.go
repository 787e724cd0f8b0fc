package notification

import (
	"context"
	"time"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Notification records one delivery attempt on one channel.
type Notification struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	PredictionID int64     `json:"prediction_id"`
	Channel      Channel   `json:"channel"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

type Clock interface {
	Now() time.Time
}
