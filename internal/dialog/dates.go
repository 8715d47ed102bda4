package dialog

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidDate is returned for due dates in none of the accepted formats.
var ErrInvalidDate = errors.New("invalid date")

// dueDateLayouts are tried in order. Day and month accept one or two
// digits.
var dueDateLayouts = []string{
	"2.1.2006 15:04",
	"2.1.2006",
	"2/1/2006 15:04",
	"2/1/2006",
}

// ParseDueDate parses user input such as "05.01.2024 10:00" or
// "05/01/2024" in loc. A date without a time means midnight.
func ParseDueDate(input string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	text := strings.TrimSpace(input)
	for _, layout := range dueDateLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}
