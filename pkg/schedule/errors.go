package schedule

import (
	"errors"
	"sort"
	"strings"
)

// ErrInvalidSettings is matched by every ValidationError.
var ErrInvalidSettings = errors.New("invalid schedule settings")

// ValidationError collects field level problems found in settings input.
type ValidationError struct {
	FieldErrors map[string]string
}

// Add records a problem for field, replacing an earlier one.
func (v *ValidationError) Add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// HasErrors reports whether any field problem was recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) Error() string {
	if !v.HasErrors() {
		return ErrInvalidSettings.Error()
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v.FieldErrors[field])
	}
	return ErrInvalidSettings.Error() + ": " + strings.Join(parts, "; ")
}

func (v *ValidationError) Unwrap() error {
	return ErrInvalidSettings
}
