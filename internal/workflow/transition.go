package workflow

import "fmt"

// NotificationType identifies which email a status transition produces.
type NotificationType string

const (
	NotificationBookSubmitted NotificationType = "BOOK_SUBMITTED"
	NotificationBookApproved  NotificationType = "BOOK_APPROVED"
	NotificationBookPublished NotificationType = "BOOK_PUBLISHED"
	NotificationBookRejected  NotificationType = "BOOK_REJECTED"
)

// legalTransitions are the forward edges of the workflow plus the editorial
// rejection edge. Creation (nil previous status) is handled separately.
var legalTransitions = map[BookStatus]map[BookStatus]bool{
	StatusDraft: {
		StatusSubmittedForEditing: true,
	},
	StatusSubmittedForEditing: {
		StatusReadyForPublication: true,
	},
	StatusReadyForPublication: {
		StatusPublished:           true,
		StatusSubmittedForEditing: true, // rejection back to editing
	},
}

// destinationNotifications maps a destination state to its default
// notification. The (previous, next) pair must be consulted first: a book
// sent back from READY_FOR_PUBLICATION to SUBMITTED_FOR_EDITING is a
// rejection, not a submission, so the destination table alone is wrong for
// that edge.
var destinationNotifications = map[BookStatus]NotificationType{
	StatusSubmittedForEditing: NotificationBookSubmitted,
	StatusReadyForPublication: NotificationBookApproved,
	StatusPublished:           NotificationBookPublished,
}

// TransitionCheck is the outcome of validating a (previous, next) pair.
// Warnings and validity are orthogonal: a transition can carry a warning
// while also being invalid.
type TransitionCheck struct {
	Valid    bool
	Warnings []string
}

// CheckTransition validates a status change. previous == nil means creation.
func CheckTransition(previous *BookStatus, next BookStatus) TransitionCheck {
	if !next.IsValid() {
		return TransitionCheck{Valid: false}
	}

	if previous == nil {
		return TransitionCheck{Valid: true}
	}

	if !previous.IsValid() {
		return TransitionCheck{Valid: false}
	}

	if *previous == next {
		return TransitionCheck{Valid: true}
	}

	var warnings []string
	if *previous == StatusPublished {
		warnings = append(warnings, fmt.Sprintf("transition from PUBLISHED to %s un-publishes a live book", next))
	}
	if *previous == StatusReadyForPublication && next == StatusDraft {
		warnings = append(warnings, "transition from READY_FOR_PUBLICATION back to DRAFT skips the editing stage")
	}

	if legalTransitions[*previous][next] {
		return TransitionCheck{Valid: true, Warnings: warnings}
	}

	return TransitionCheck{Valid: false, Warnings: warnings}
}

// ShouldNotify reports whether the status change produces a notification.
// Silent cases: no-op transitions, creation directly into DRAFT, and any
// invalid transition.
func ShouldNotify(previous *BookStatus, next BookStatus) bool {
	_, ok := NotificationTypeFor(previous, next)
	return ok
}

// NotificationTypeFor resolves the notification for a status change, or
// false when the change is silent or invalid.
func NotificationTypeFor(previous *BookStatus, next BookStatus) (NotificationType, bool) {
	if previous != nil && *previous == next {
		return "", false
	}

	if previous == nil {
		// Creation straight into a non-draft state happens on the import and
		// migration paths and is announced; normal draft creation is silent.
		if next == StatusDraft || !next.IsValid() {
			return "", false
		}
		nt, ok := destinationNotifications[next]
		return nt, ok
	}

	check := CheckTransition(previous, next)
	if !check.Valid {
		return "", false
	}

	if *previous == StatusReadyForPublication && next == StatusSubmittedForEditing {
		return NotificationBookRejected, true
	}

	nt, ok := destinationNotifications[next]
	return nt, ok
}
