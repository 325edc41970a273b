package workflow

import "fmt"

// BookStatus is the four-state lifecycle of a manuscript. Transitions are
// graph edges, not a linear chain; the values carry no ordering.
type BookStatus string

const (
	StatusDraft               BookStatus = "DRAFT"
	StatusSubmittedForEditing BookStatus = "SUBMITTED_FOR_EDITING"
	StatusReadyForPublication BookStatus = "READY_FOR_PUBLICATION"
	StatusPublished           BookStatus = "PUBLISHED"
)

var allStatuses = map[BookStatus]bool{
	StatusDraft:               true,
	StatusSubmittedForEditing: true,
	StatusReadyForPublication: true,
	StatusPublished:           true,
}

func (s BookStatus) IsValid() bool {
	return allStatuses[s]
}

func ParseStatus(raw string) (BookStatus, error) {
	s := BookStatus(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown book status: %q", raw)
	}
	return s, nil
}

func Statuses() []BookStatus {
	return []BookStatus{
		StatusDraft,
		StatusSubmittedForEditing,
		StatusReadyForPublication,
		StatusPublished,
	}
}
