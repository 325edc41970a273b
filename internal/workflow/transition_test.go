package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s BookStatus) *BookStatus {
	return &s
}

func TestCheckTransition_LegalEdges(t *testing.T) {
	tests := []struct {
		name     string
		previous *BookStatus
		next     BookStatus
	}{
		{"draft to submitted", ptr(StatusDraft), StatusSubmittedForEditing},
		{"submitted to ready", ptr(StatusSubmittedForEditing), StatusReadyForPublication},
		{"ready to published", ptr(StatusReadyForPublication), StatusPublished},
		{"ready back to submitted", ptr(StatusReadyForPublication), StatusSubmittedForEditing},
		{"creation into draft", nil, StatusDraft},
		{"creation into published", nil, StatusPublished},
		{"no-op transition", ptr(StatusDraft), StatusDraft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := CheckTransition(tt.previous, tt.next)
			assert.True(t, check.Valid)
			assert.Empty(t, check.Warnings)
		})
	}
}

func TestCheckTransition_IllegalEdges(t *testing.T) {
	tests := []struct {
		name     string
		previous BookStatus
		next     BookStatus
	}{
		{"draft skips editing", StatusDraft, StatusReadyForPublication},
		{"draft straight to published", StatusDraft, StatusPublished},
		{"submitted skips approval", StatusSubmittedForEditing, StatusPublished},
		{"submitted back to draft", StatusSubmittedForEditing, StatusDraft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := CheckTransition(ptr(tt.previous), tt.next)
			assert.False(t, check.Valid)
			assert.False(t, ShouldNotify(ptr(tt.previous), tt.next))
		})
	}
}

func TestCheckTransition_WarnedAndInvalid(t *testing.T) {
	// Transitions out of PUBLISHED and READY_FOR_PUBLICATION->DRAFT carry a
	// warning and are still rejected; the warning does not legalize them.
	for _, next := range []BookStatus{StatusDraft, StatusSubmittedForEditing, StatusReadyForPublication} {
		check := CheckTransition(ptr(StatusPublished), next)
		assert.False(t, check.Valid, "PUBLISHED->%s", next)
		assert.NotEmpty(t, check.Warnings, "PUBLISHED->%s", next)
	}

	check := CheckTransition(ptr(StatusReadyForPublication), StatusDraft)
	assert.False(t, check.Valid)
	assert.NotEmpty(t, check.Warnings)
}

func TestCheckTransition_UnknownStatus(t *testing.T) {
	check := CheckTransition(nil, BookStatus("SHELVED"))
	assert.False(t, check.Valid)

	prev := BookStatus("SHELVED")
	check = CheckTransition(&prev, StatusDraft)
	assert.False(t, check.Valid)
}

func TestNotificationTypeFor_ForwardEdges(t *testing.T) {
	tests := []struct {
		previous BookStatus
		next     BookStatus
		want     NotificationType
	}{
		{StatusDraft, StatusSubmittedForEditing, NotificationBookSubmitted},
		{StatusSubmittedForEditing, StatusReadyForPublication, NotificationBookApproved},
		{StatusReadyForPublication, StatusPublished, NotificationBookPublished},
	}

	for _, tt := range tests {
		nt, ok := NotificationTypeFor(ptr(tt.previous), tt.next)
		require.True(t, ok, "%s->%s", tt.previous, tt.next)
		assert.Equal(t, tt.want, nt)
	}
}

func TestNotificationTypeFor_RejectionIsNotApproval(t *testing.T) {
	// Going backward from READY_FOR_PUBLICATION is the one edge where the
	// destination-state default would produce the wrong answer.
	nt, ok := NotificationTypeFor(ptr(StatusReadyForPublication), StatusSubmittedForEditing)
	require.True(t, ok)
	assert.Equal(t, NotificationBookRejected, nt)
	assert.NotEqual(t, NotificationBookApproved, nt)
}

func TestNotificationTypeFor_SilentCases(t *testing.T) {
	_, ok := NotificationTypeFor(nil, StatusDraft)
	assert.False(t, ok, "creation into draft is silent")

	_, ok = NotificationTypeFor(ptr(StatusPublished), StatusPublished)
	assert.False(t, ok, "no-op transition is silent")

	_, ok = NotificationTypeFor(ptr(StatusDraft), StatusPublished)
	assert.False(t, ok, "invalid transition never notifies")
}

func TestNotificationTypeFor_DirectCreation(t *testing.T) {
	tests := []struct {
		next BookStatus
		want NotificationType
	}{
		{StatusSubmittedForEditing, NotificationBookSubmitted},
		{StatusReadyForPublication, NotificationBookApproved},
		{StatusPublished, NotificationBookPublished},
	}

	for _, tt := range tests {
		nt, ok := NotificationTypeFor(nil, tt.next)
		require.True(t, ok, "nil->%s", tt.next)
		assert.Equal(t, tt.want, nt)
	}

	assert.True(t, ShouldNotify(nil, StatusSubmittedForEditing))
	assert.False(t, ShouldNotify(nil, StatusDraft))
}

func TestShouldNotify_AllPairs(t *testing.T) {
	// Every pair outside the legal set must be silent.
	legal := map[string]bool{
		"DRAFT->SUBMITTED_FOR_EDITING":                 true,
		"SUBMITTED_FOR_EDITING->READY_FOR_PUBLICATION": true,
		"READY_FOR_PUBLICATION->PUBLISHED":             true,
		"READY_FOR_PUBLICATION->SUBMITTED_FOR_EDITING": true,
	}

	for _, prev := range Statuses() {
		for _, next := range Statuses() {
			key := string(prev) + "->" + string(next)
			got := ShouldNotify(ptr(prev), next)
			assert.Equal(t, legal[key], got, key)
		}
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("PUBLISHED")
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, s)

	_, err = ParseStatus("published")
	assert.Error(t, err)

	_, err = ParseStatus("")
	assert.Error(t, err)
}
