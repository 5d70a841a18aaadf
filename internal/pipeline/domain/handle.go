package domain

import "regexp"

var handleRe = regexp.MustCompile(`^[0-9a-f]{24}$`)

// ValidHandle report whether h has the shape of a blob handle
func ValidHandle(h string) bool {
	return handleRe.MatchString(h)
}
