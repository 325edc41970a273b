package event

import (
	"encoding/json"
	"fmt"

	"bookwire/internal/constants"
	apperrors "bookwire/pkg/errors"
)

// Codec serializes and deserializes envelopes, validating on both sides so
// malformed data never crosses the wire silently in either direction.
type Codec struct {
	validator *Validator
}

func NewCodec(validator *Validator) *Codec {
	return &Codec{validator: validator}
}

func (c *Codec) Serialize(e *StatusChangeEvent) ([]byte, error) {
	result := c.validator.Validate(e)
	if !result.IsValid {
		return nil, apperrors.ErrInvalidEvent.
			WithDetail("message", fmt.Sprintf("refusing to serialize invalid event: %v", result.Errors)).
			WithDetail("field_errors", result.Errors)
	}

	body, err := json.Marshal(e)
	if err != nil {
		return nil, apperrors.ErrInternal.WithCause(err)
	}
	return body, nil
}

func (c *Codec) Deserialize(raw []byte) (*StatusChangeEvent, error) {
	var e StatusChangeEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, apperrors.ErrMalformedPayload.
			WithCause(err).
			WithDetail("payload_snippet", Truncate(string(raw), constants.DescriptionMaxLen))
	}

	result := c.validator.Validate(&e)
	if !result.IsValid {
		return nil, apperrors.ErrInvalidEvent.
			WithDetail("message", fmt.Sprintf("invalid event structure: %v", result.Errors)).
			WithDetail("field_errors", result.Errors)
	}

	return &e, nil
}

// Truncate caps free text for logs and diagnostics.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
