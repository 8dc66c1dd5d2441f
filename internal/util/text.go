package util

import (
	"fmt"
	"strings"
	"time"
)

// SanitizePostgresText strips NUL bytes and invalid UTF-8, both of which
// Postgres rejects in text and jsonb columns.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// FormatDuration renders d as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
