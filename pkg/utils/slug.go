package utils

import (
	"strings"

	"github.com/gosimple/slug"
)

// NormalizeSlug creates a URL-friendly slug using the gosimple/slug library.
// Non-ASCII letters are transliterated, so "Übersetzung" becomes "ubersetzung".
func NormalizeSlug(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return slug.Make(text)
}

// SchedulerKey derives the persisted scheduler key from a display name when a
// definition does not declare one explicitly.
func SchedulerKey(name string) string {
	key := NormalizeSlug(name)
	if key == "" {
		return "scheduler"
	}
	return key
}

// IsSchedulerKey reports whether key is already in canonical slug form and can
// be used as a path segment in the admin API.
func IsSchedulerKey(key string) bool {
	return key != "" && slug.IsSlug(key)
}
