package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks submission-time failures: unknown profile or
	// workflow names, missing required parameters, invalid enum values.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks lookups for job, profile, or workflow names that
	// do not exist.
	ErrNotFound = errors.New("not found")
	// ErrExternalTool marks ffmpeg/ffprobe failures: non-zero exit or
	// missing output.
	ErrExternalTool = errors.New("external tool error")
	// ErrCancelled marks jobs terminated by an explicit cancellation
	// request, before or during execution.
	ErrCancelled = errors.New("cancelled")
	// ErrConfiguration marks invalid configuration detected at startup.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails carries the user-facing portion of a classified error.
type ErrorDetails struct {
	Message string
}

// Details strips the sentinel prefix from a wrapped error so job records and
// API responses carry only the human-readable portion.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	message := err.Error()
	for _, marker := range []error{ErrValidation, ErrNotFound, ErrExternalTool, ErrCancelled, ErrConfiguration} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(message, prefix) {
			message = strings.TrimPrefix(message, prefix)
			break
		}
	}
	return ErrorDetails{Message: strings.TrimSpace(message)}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
