package model

import "time"

type WarmupDirection string

const (
	WarmupSent  WarmupDirection = "sent"
	WarmupReply WarmupDirection = "reply"
)

type WarmupLog struct {
	ID                int64           `json:"id"`
	SenderAccountID   int64           `json:"sender_account_id"`
	ReceiverAccountID int64           `json:"receiver_account_id"`
	Direction         WarmupDirection `json:"direction"`
	Subject           string          `json:"subject"`
	MessageID         string          `json:"message_id"`
	SentAt            time.Time       `json:"sent_at"`
	RepliedAt         *time.Time      `json:"replied_at,omitempty"`
	MarkedReadAt      *time.Time      `json:"marked_read_at,omitempty"`
}

// WarmupStats are the lifetime counters the score is computed from.
type WarmupStats struct {
	Sent    int64
	Replied int64
}
