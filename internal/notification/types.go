package notification

import (
	"bookwire/internal/workflow"
)

// Request is the ephemeral mapping of a validated event to an outbound
// email. Never persisted; consumed immediately by the mail transport.
type Request struct {
	Type           workflow.NotificationType
	RecipientEmail string
	CCEmails       []string
	Variables      map[string]string
}

type EmailContent struct {
	Subject  string
	HTMLBody string
	TextBody string
}
