// Package mailer is the boundary to the mail relay that speaks SMTP/IMAP on
// the engine's behalf.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNoAvailableRelays = errors.New("no available mail relays")

// SpamFolders are searched when pulling warmup mail out of spam.
var SpamFolders = []string{"[Gmail]/Spam", "Junk", "Spam", "Junk Email", "INBOX.Spam"}

type SendRequest struct {
	CredentialRef string `json:"credential_ref"`
	From          string `json:"from"`
	FromName      string `json:"from_name,omitempty"`
	To            string `json:"to"`
	Subject       string `json:"subject"`
	HTMLBody      string `json:"html"`
	InReplyTo     string `json:"in_reply_to,omitempty"`
	References    string `json:"references,omitempty"`
}

type SendResult struct {
	MessageID string `json:"message_id"`
}

// Mailbox identifies an account's inbox on the relay.
type Mailbox struct {
	CredentialRef string `json:"credential_ref"`
	Address       string `json:"address"`
}

type InboundMessage struct {
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	MessageID  string    `json:"message_id"`
	InReplyTo  string    `json:"in_reply_to,omitempty"`
	References string    `json:"references,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// SendError is a failure reported by the relay for a specific message.
// Permanent errors carry the remote SMTP reply and are never retried on
// another relay.
type SendError struct {
	Permanent bool
	Reason    string
}

func (e *SendError) Error() string {
	if e.Permanent {
		return fmt.Sprintf("permanent delivery failure: %s", e.Reason)
	}
	return fmt.Sprintf("delivery failure: %s", e.Reason)
}

// IsPermanent reports whether err is a permanent relay rejection.
func IsPermanent(err error) bool {
	var se *SendError
	return errors.As(err, &se) && se.Permanent
}

type Transport interface {
	Send(ctx context.Context, req *SendRequest) (*SendResult, error)
	// FetchUnread returns unread messages from every folder and marks them read.
	FetchUnread(ctx context.Context, box Mailbox) ([]InboundMessage, error)
	// MoveFromSpam moves messages with subject out of the spam folders.
	MoveFromSpam(ctx context.Context, box Mailbox, subject string) (bool, error)
}
