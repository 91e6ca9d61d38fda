package agmarknet

import (
	"context"
	"errors"
	"fmt"
)

// ElementNotPresentError indicates an element did not appear within the wait bound.
type ElementNotPresentError struct {
	Selector Selector
	Err      error
}

func (e *ElementNotPresentError) Error() string {
	return fmt.Sprintf("element %s not present: %v", e.Selector, e.Err)
}

func (e *ElementNotPresentError) Unwrap() error {
	return e.Err
}

// OptionNotFoundError indicates a dropdown has no option with the requested label.
type OptionNotFoundError struct {
	Selector Selector
	Label    string
}

func (e *OptionNotFoundError) Error() string {
	return fmt.Sprintf("option %q not found in %s", e.Label, e.Selector)
}

// NavigationError is a failed form run. Reached is the last state the
// navigator got to before failing.
type NavigationError struct {
	Reached State
	Err     error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation failed after %s: %v", e.Reached, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies err for reporting and metric labels.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var notPresent *ElementNotPresentError
	if errors.As(err, &notPresent) {
		return "timeout"
	}
	var noOption *OptionNotFoundError
	if errors.As(err, &noOption) {
		return "option_not_found"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return "other"
}

// IsTimeout reports whether err came from a bounded wait running out.
func IsTimeout(err error) bool {
	return ErrorKind(err) == "timeout"
}
