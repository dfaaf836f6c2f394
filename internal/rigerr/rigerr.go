// Package rigerr defines the error taxonomy shared by the rig operations.
package rigerr

import (
	"errors"
	"fmt"
)

// Error kinds. Wrap them with fmt.Errorf("%w: ...") and test with errors.Is.
var (
	// ErrConfiguration means a required reference object or armature is not set.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation means a selection precondition is not met.
	ErrValidation = errors.New("validation error")
	// ErrGeometryDegenerate means a vertex filter band came back empty.
	// It is handled locally with a fallback and never returned by operations.
	ErrGeometryDegenerate = errors.New("degenerate geometry")
)

// Configuration returns an ErrConfiguration with a formatted message.
func Configuration(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Validation returns an ErrValidation with a formatted message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Degenerate returns an ErrGeometryDegenerate with a formatted message.
func Degenerate(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrGeometryDegenerate, fmt.Sprintf(format, args...))
}

// Message strips the kind prefix and returns the human readable part.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, kind := range []error{ErrConfiguration, ErrValidation, ErrGeometryDegenerate} {
		prefix := kind.Error() + ": "
		if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return msg
}
