package repository

import (
	"strings"
)

// sanitizeText drops NUL bytes and invalid UTF-8 that PostgreSQL rejects
// with error 22P05. Extracted PDF text regularly contains both.
func sanitizeText(s string) string {
	s = strings.ToValidUTF8(s, "")
	return strings.ReplaceAll(s, "\x00", "")
}
