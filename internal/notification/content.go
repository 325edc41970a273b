package notification

import (
	"fmt"
	"html"
	"strings"

	"bookwire/internal/workflow"
	apperrors "bookwire/pkg/errors"
)

type contentTemplate struct {
	subject string
	lead    string
	action  string
}

var contentTemplates = map[workflow.NotificationType]contentTemplate{
	workflow.NotificationBookSubmitted: {
		subject: "Book submitted for editing: %s",
		lead:    "%q by %s has been submitted and is waiting for an editor.",
		action:  "Review the manuscript",
	},
	workflow.NotificationBookApproved: {
		subject: "Book approved for publication: %s",
		lead:    "%q by %s has passed editing and is ready to be published.",
		action:  "Schedule publication",
	},
	workflow.NotificationBookRejected: {
		subject: "Book returned for revision: %s",
		lead:    "%q by %s was sent back to editing by the publication review.",
		action:  "See the requested changes",
	},
	workflow.NotificationBookPublished: {
		subject: "Book published: %s",
		lead:    "%q by %s is now live.",
		action:  "View the published book",
	},
}

// GenerateEmailContent renders subject and bodies for a notification type.
// An unrecognized type is an explicit error, never a silent default.
// Multiline comments render as literal line breaks in text and <br>-joined
// lines in HTML.
func GenerateEmailContent(t workflow.NotificationType, variables map[string]string) (*EmailContent, error) {
	tpl, ok := contentTemplates[t]
	if !ok {
		return nil, apperrors.ErrValidation.
			WithDetail("message", fmt.Sprintf("no email template for notification type %q", string(t)))
	}

	title := variables["bookTitle"]
	author := variables["userName"]
	bookID := variables["bookId"]
	comments := variables["comments"]
	actionURL := variables["actionUrl"]

	subject := fmt.Sprintf(tpl.subject, title)
	lead := fmt.Sprintf(tpl.lead, title, author)

	var text strings.Builder
	text.WriteString(lead)
	text.WriteString("\n\nBook ID: " + bookID)
	if comments != "" {
		text.WriteString("\n\nComments:\n" + comments)
	}
	text.WriteString(fmt.Sprintf("\n\n%s: %s\n", tpl.action, actionURL))

	var htmlBody strings.Builder
	htmlBody.WriteString("<html><body>")
	htmlBody.WriteString("<p>" + html.EscapeString(lead) + "</p>")
	htmlBody.WriteString("<p>Book ID: " + html.EscapeString(bookID) + "</p>")
	if comments != "" {
		htmlBody.WriteString("<p>Comments:<br>" + htmlLines(comments) + "</p>")
	}
	htmlBody.WriteString(fmt.Sprintf(`<p><a href="%s">%s</a></p>`,
		html.EscapeString(actionURL), html.EscapeString(tpl.action)))
	htmlBody.WriteString("</body></html>")

	return &EmailContent{
		Subject:  subject,
		HTMLBody: htmlBody.String(),
		TextBody: text.String(),
	}, nil
}

func htmlLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = html.EscapeString(line)
	}
	return strings.Join(lines, "<br>")
}
