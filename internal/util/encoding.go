package util

import (
	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKD normalization so that visually identical passwords
// typed on different platforms compare equal server-side.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}
