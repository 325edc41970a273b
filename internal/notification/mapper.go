package notification

import (
	"fmt"
	"strings"

	"bookwire/internal/config"
	"bookwire/internal/event"
	"bookwire/internal/logger"
	"bookwire/internal/workflow"
)

// metadata key carrying the optional follow-up instructions attached by the
// workflow producer.
const nextStepsKey = "nextSteps"

var actionPaths = map[workflow.NotificationType]string{
	workflow.NotificationBookSubmitted: "/review",
	workflow.NotificationBookApproved:  "/publish",
	workflow.NotificationBookRejected:  "/edit",
	workflow.NotificationBookPublished: "/view",
}

// Mapper turns validated status-change events into notification requests.
// Notifications go to a fixed operations mailbox, not to the book's author.
type Mapper struct {
	targetEmail     string
	frontendBaseURL string
	cc              CCConfig
	logger          logger.Logger
}

func NewMapper(cfg config.NotificationConfig, cc CCConfig, log logger.Logger) *Mapper {
	return &Mapper{
		targetEmail:     cfg.TargetEmail,
		frontendBaseURL: strings.TrimRight(cfg.FrontendBaseURL, "/"),
		cc:              cc,
		logger:          log,
	}
}

// Map resolves the event's notification request, or nil when the transition
// is silent. The filter mirrors the publisher side so an already-filtered
// event that slips through is dropped here too.
func (m *Mapper) Map(e *event.StatusChangeEvent) (*Request, error) {
	if e == nil {
		return nil, fmt.Errorf("nil event")
	}

	notificationType, ok := workflow.NotificationTypeFor(e.Data.PreviousStatus, e.Data.NewStatus)
	if !ok {
		return nil, nil
	}

	return &Request{
		Type:           notificationType,
		RecipientEmail: m.targetEmail,
		CCEmails:       EffectiveCCEmails(m.cc, m.targetEmail),
		Variables: map[string]string{
			"userName":  e.Data.Author,
			"bookTitle": e.Data.Title,
			"bookId":    e.Data.BookID,
			"comments":  buildComments(e.Data.ChangeReason, e.Data.Metadata),
			"actionUrl": m.actionURL(notificationType, e.Data.BookID),
		},
	}, nil
}

func buildComments(changeReason string, metadata map[string]interface{}) string {
	comments := changeReason

	if metadata != nil {
		if raw, ok := metadata[nextStepsKey]; ok {
			if nextSteps, ok := raw.(string); ok && nextSteps != "" {
				if comments != "" {
					comments += "\n"
				}
				comments += "Next Steps: " + nextSteps
			}
		}
	}

	return comments
}

func (m *Mapper) actionURL(t workflow.NotificationType, bookID string) string {
	return fmt.Sprintf("%s/books/%s%s", m.frontendBaseURL, bookID, actionPaths[t])
}
