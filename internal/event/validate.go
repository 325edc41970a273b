package event

import (
	"fmt"
	"regexp"
	"time"

	"bookwire/internal/workflow"
)

var (
	uuidV4Pattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

	// debugIDPattern whitelists the sentinel ids used by load and replay
	// harnesses so their events survive validation.
	debugIDPattern = regexp.MustCompile(`^(test|debug)-[0-9A-Za-z-]{1,64}$`)
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationResult struct {
	IsValid bool
	Errors  []FieldError
	// Warnings flag legal-but-unusual transitions. Orthogonal to validity:
	// a warned transition can still be invalid.
	Warnings []string
}

type Validator struct {
	allowedSources map[string]bool
}

func NewValidator(allowedSources []string) *Validator {
	allowed := make(map[string]bool, len(allowedSources))
	for _, s := range allowedSources {
		allowed[s] = true
	}
	return &Validator{allowedSources: allowed}
}

// Validate checks every envelope constraint and collects all violations
// rather than stopping at the first.
func (v *Validator) Validate(e *StatusChangeEvent) ValidationResult {
	if e == nil {
		return ValidationResult{Errors: []FieldError{{Field: "event", Message: "event is nil"}}}
	}

	var errs []FieldError

	if e.EventType != TypeBookStatusChanged {
		errs = append(errs, FieldError{
			Field:   "eventType",
			Message: fmt.Sprintf("must be %q, got %q", TypeBookStatusChanged, e.EventType),
		})
	}

	if e.EventID == "" {
		errs = append(errs, FieldError{Field: "eventId", Message: "is required"})
	} else if !uuidV4Pattern.MatchString(e.EventID) && !debugIDPattern.MatchString(e.EventID) {
		errs = append(errs, FieldError{
			Field:   "eventId",
			Message: fmt.Sprintf("must be a UUIDv4 or a test sentinel id, got %q", e.EventID),
		})
	}

	if e.Timestamp == "" {
		errs = append(errs, FieldError{Field: "timestamp", Message: "is required"})
	} else if _, err := time.Parse(time.RFC3339, e.Timestamp); err != nil {
		errs = append(errs, FieldError{
			Field:   "timestamp",
			Message: fmt.Sprintf("must be a valid ISO-8601 timestamp, got %q", e.Timestamp),
		})
	}

	// Source presence is checked, not non-emptiness: producers that predate
	// the allow-list send "" and those events are still accepted. An empty
	// allow-list disables the membership check.
	if e.Source != "" && len(v.allowedSources) > 0 && !v.allowedSources[e.Source] {
		errs = append(errs, FieldError{
			Field:   "source",
			Message: fmt.Sprintf("%q is not an allowed producer identity", e.Source),
		})
	}

	if e.Version != Version {
		errs = append(errs, FieldError{
			Field:   "version",
			Message: fmt.Sprintf("must be %q, got %q", Version, e.Version),
		})
	}

	dataErrs, warnings := validateData(&e.Data)
	errs = append(errs, dataErrs...)

	return ValidationResult{IsValid: len(errs) == 0, Errors: errs, Warnings: warnings}
}

func validateData(d *StatusChangeData) ([]FieldError, []string) {
	var errs []FieldError
	var warnings []string

	requireNonEmpty := func(field, value string) {
		if value == "" {
			errs = append(errs, FieldError{Field: "data." + field, Message: "is required"})
		}
	}

	requireNonEmpty("bookId", d.BookID)
	requireNonEmpty("title", d.Title)
	requireNonEmpty("author", d.Author)
	requireNonEmpty("changedBy", d.ChangedBy)

	if !d.NewStatus.IsValid() {
		errs = append(errs, FieldError{
			Field:   "data.newStatus",
			Message: fmt.Sprintf("unknown book status %q", string(d.NewStatus)),
		})
	}

	if d.PreviousStatus != nil && !d.PreviousStatus.IsValid() {
		errs = append(errs, FieldError{
			Field:   "data.previousStatus",
			Message: fmt.Sprintf("unknown book status %q", string(*d.PreviousStatus)),
		})
	}

	if d.NewStatus.IsValid() && (d.PreviousStatus == nil || d.PreviousStatus.IsValid()) {
		check := workflow.CheckTransition(d.PreviousStatus, d.NewStatus)
		warnings = append(warnings, check.Warnings...)
		if !check.Valid {
			prev := "null"
			if d.PreviousStatus != nil {
				prev = string(*d.PreviousStatus)
			}
			errs = append(errs, FieldError{
				Field:   "data",
				Message: fmt.Sprintf("illegal status transition %s -> %s", prev, d.NewStatus),
			})
		}
	}

	return errs, warnings
}
