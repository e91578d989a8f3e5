package utils

import "github.com/microcosm-cc/bluemonday"

var sanitizer = bluemonday.UGCPolicy()

// Sanitize cleans HTML content to prevent XSS attacks. Applied to rich-text
// project and task descriptions before they are persisted.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}
