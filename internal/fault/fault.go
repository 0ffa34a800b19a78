// Package fault defines the four error categories every engine rejection
// falls into. Component packages declare their own sentinels wrapping
// exactly one category so callers can branch on errors.Is against either
// the specific sentinel or the category.
package fault

import "errors"

var (
	// ErrValidation covers malformed input: stakes out of bounds, invalid
	// choices or targets, malformed commitments.
	ErrValidation = errors.New("validation_error")

	// ErrState covers actions that are legal in general but not for the
	// current lifecycle state: double reveal, joining a resolved session,
	// entering a settled round.
	ErrState = errors.New("state_error")

	// ErrAuthorization covers callers that are not the owner/counterpart
	// of what they act on, or are not verified.
	ErrAuthorization = errors.New("authorization_error")

	// ErrTimeout covers actions attempted outside their allowed window.
	ErrTimeout = errors.New("timeout_error")
)

// Wrap pairs a specific code with its category so both survive errors.Is.
func Wrap(category error, code string) error {
	return &categorized{category: category, code: code}
}

type categorized struct {
	category error
	code     string
}

func (e *categorized) Error() string { return e.code }

func (e *categorized) Unwrap() error { return e.category }

// Code returns the snake_case code of an engine error, or "internal_error"
// for anything outside the taxonomy.
func Code(err error) string {
	var c *categorized
	if errors.As(err, &c) {
		return c.code
	}
	return "internal_error"
}
