package notification

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookwire/internal/config"
	"bookwire/internal/event"
	"bookwire/internal/logger"
	"bookwire/internal/workflow"
)

func newTestMapper() *Mapper {
	cfg := config.NotificationConfig{
		TargetEmail:     "ops@x.com",
		FrontendBaseURL: "https://press.example.com/",
	}
	cc := CCConfig{Enabled: true, Emails: []string{"cc@x.com", "ops@x.com"}}
	return NewMapper(cfg, cc, logger.NopLogger())
}

func statusChangeEvent(prev *workflow.BookStatus, next workflow.BookStatus) *event.StatusChangeEvent {
	return &event.StatusChangeEvent{
		EventType: event.TypeBookStatusChanged,
		EventID:   "test-mapper-1",
		Timestamp: "2026-08-30T10:15:00Z",
		Source:    "book-workflow-service",
		Version:   event.Version,
		Data: event.StatusChangeData{
			BookID:         "book-42",
			Title:          "The Silent Press",
			Author:         "R. Calder",
			PreviousStatus: prev,
			NewStatus:      next,
			ChangedBy:      "editor-5",
			ChangeReason:   "structure needs work",
		},
	}
}

func ptr(s workflow.BookStatus) *workflow.BookStatus {
	return &s
}

func TestMap_BuildsRequest(t *testing.T) {
	m := newTestMapper()

	req, err := m.Map(statusChangeEvent(ptr(workflow.StatusDraft), workflow.StatusSubmittedForEditing))
	require.NoError(t, err)
	require.NotNil(t, req)

	assert.Equal(t, workflow.NotificationBookSubmitted, req.Type)
	assert.Equal(t, "ops@x.com", req.RecipientEmail)
	assert.Equal(t, []string{"cc@x.com"}, req.CCEmails, "primary recipient must be excluded from CC")
	assert.Equal(t, "R. Calder", req.Variables["userName"])
	assert.Equal(t, "The Silent Press", req.Variables["bookTitle"])
	assert.Equal(t, "book-42", req.Variables["bookId"])
	assert.Equal(t, "structure needs work", req.Variables["comments"])
	assert.Equal(t, "https://press.example.com/books/book-42/review", req.Variables["actionUrl"])
}

func TestMap_ActionURLPerType(t *testing.T) {
	m := newTestMapper()

	tests := []struct {
		prev   workflow.BookStatus
		next   workflow.BookStatus
		suffix string
	}{
		{workflow.StatusDraft, workflow.StatusSubmittedForEditing, "/review"},
		{workflow.StatusSubmittedForEditing, workflow.StatusReadyForPublication, "/publish"},
		{workflow.StatusReadyForPublication, workflow.StatusSubmittedForEditing, "/edit"},
		{workflow.StatusReadyForPublication, workflow.StatusPublished, "/view"},
	}

	for _, tt := range tests {
		req, err := m.Map(statusChangeEvent(ptr(tt.prev), tt.next))
		require.NoError(t, err)
		require.NotNil(t, req)
		assert.True(t, strings.HasSuffix(req.Variables["actionUrl"], tt.suffix),
			"%s->%s should link to %s, got %s", tt.prev, tt.next, tt.suffix, req.Variables["actionUrl"])
	}
}

func TestMap_SilentTransitionReturnsNil(t *testing.T) {
	m := newTestMapper()

	req, err := m.Map(statusChangeEvent(nil, workflow.StatusDraft))
	require.NoError(t, err)
	assert.Nil(t, req)

	req, err = m.Map(statusChangeEvent(ptr(workflow.StatusPublished), workflow.StatusPublished))
	require.NoError(t, err)
	assert.Nil(t, req)
}

func TestMap_NextStepsAppendedToComments(t *testing.T) {
	m := newTestMapper()

	e := statusChangeEvent(ptr(workflow.StatusReadyForPublication), workflow.StatusSubmittedForEditing)
	e.Data.Metadata = map[string]interface{}{"nextSteps": "address reviewer notes in ch. 3"}

	req, err := m.Map(e)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, "structure needs work\nNext Steps: address reviewer notes in ch. 3", req.Variables["comments"])
}

func TestMap_NextStepsWithoutReason(t *testing.T) {
	m := newTestMapper()

	e := statusChangeEvent(ptr(workflow.StatusDraft), workflow.StatusSubmittedForEditing)
	e.Data.ChangeReason = ""
	e.Data.Metadata = map[string]interface{}{"nextSteps": "assign an editor"}

	req, err := m.Map(e)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, "Next Steps: assign an editor", req.Variables["comments"])
}

func TestGenerateEmailContent_UnknownType(t *testing.T) {
	_, err := GenerateEmailContent(workflow.NotificationType("BOOK_SHREDDED"), map[string]string{})
	assert.Error(t, err)
}

func TestGenerateEmailContent_MultilineComments(t *testing.T) {
	content, err := GenerateEmailContent(workflow.NotificationBookRejected, map[string]string{
		"bookTitle": "The Silent Press",
		"userName":  "R. Calder",
		"bookId":    "book-42",
		"comments":  "line one\nline two",
		"actionUrl": "https://press.example.com/books/book-42/edit",
	})
	require.NoError(t, err)

	assert.Contains(t, content.TextBody, "line one\nline two")
	assert.Contains(t, content.HTMLBody, "line one<br>line two")
}

func TestGenerateEmailContent_EscapesHTML(t *testing.T) {
	content, err := GenerateEmailContent(workflow.NotificationBookSubmitted, map[string]string{
		"bookTitle": "Tags <& Trees>",
		"userName":  "R. Calder",
		"bookId":    "book-9",
		"comments":  "<script>alert(1)</script>",
		"actionUrl": "https://press.example.com/books/book-9/review",
	})
	require.NoError(t, err)

	assert.NotContains(t, content.HTMLBody, "<script>")
	assert.Contains(t, content.HTMLBody, "&lt;script&gt;")
	assert.Contains(t, content.Subject, "Tags <& Trees>")
}

func TestGenerateEmailContent_AllKnownTypes(t *testing.T) {
	vars := map[string]string{
		"bookTitle": "T", "userName": "A", "bookId": "b", "actionUrl": "u",
	}
	for _, nt := range []workflow.NotificationType{
		workflow.NotificationBookSubmitted,
		workflow.NotificationBookApproved,
		workflow.NotificationBookRejected,
		workflow.NotificationBookPublished,
	} {
		content, err := GenerateEmailContent(nt, vars)
		require.NoError(t, err, string(nt))
		assert.NotEmpty(t, content.Subject)
		assert.NotEmpty(t, content.HTMLBody)
		assert.NotEmpty(t, content.TextBody)
	}
}
