// Package validation provides custom validation rules for the application.
package validation

import (
	"encoding/json"
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/posflow/posflow/internal/errors"
)

var (
	// eventTypeRegex matches dotted lowercase tags like "order.status_changed"
	eventTypeRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)*$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// EventTypeTag validates the dotted lowercase format of event type tags.
var EventTypeTag = validation.NewStringRuleWithError(
	func(s string) bool {
		return eventTypeRegex.MatchString(s)
	},
	validation.NewError("validation_event_type_tag", "must be a dotted lowercase tag"),
)

// JSONPayload validates that a byte slice holds a well-formed JSON document.
var JSONPayload = validation.By(func(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	case string:
		data = []byte(v)
	default:
		return validation.NewError("validation_json_payload", "must be a JSON document")
	}
	if len(data) == 0 {
		// Required handles emptiness, an absent payload is not malformed.
		return nil
	}
	if !json.Valid(data) {
		return validation.NewError("validation_json_payload", "must be a valid JSON document")
	}
	return nil
})

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)
