package mailer

import (
	"context"
)

// Message is a fully rendered outbound email.
type Message struct {
	From     string
	To       []string
	CC       []string
	Subject  string
	HTMLBody string
	TextBody string
}

// Sender delivers a message and returns the provider message id. Errors are
// classified through the pkg/errors taxonomy: transient failures (connection
// problems, 4xx SMTP replies, throttling) are retryable via queue
// redelivery, permanent failures (5xx SMTP replies) are not.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}
