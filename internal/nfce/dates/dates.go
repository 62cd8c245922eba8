// Package dates converts vendor-localized date strings to canonical ISO dates.
// Dates are date-only values; no timezone handling happens here.
package dates

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrUnknownFormat marks a date string in neither ISO nor Brazilian format.
var ErrUnknownFormat = errors.New("unrecognized date format")

var (
	isoPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	brPattern  = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
)

// ToISO returns dateStr unchanged when already YYYY-MM-DD, rewrites DD/MM/YYYY
// to YYYY-MM-DD, and fails otherwise carrying the original string.
func ToISO(dateStr string) (string, error) {
	if isoPattern.MatchString(dateStr) {
		return dateStr, nil
	}
	if m := brPattern.FindStringSubmatch(dateStr); m != nil {
		return m[3] + "-" + m[2] + "-" + m[1], nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, dateStr)
}
