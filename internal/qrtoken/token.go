// Package qrtoken mints and validates the ephemeral attendance codes shown on
// the admin screen. A code is valid only on the calendar day it was minted;
// beyond that it carries no secret, the random salt just defeats trivial
// guessing across generations.
package qrtoken

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const prefix = "attendance_"

var (
	// ErrMalformedCode means the scanned string is not an attendance code at all.
	ErrMalformedCode = errors.New("not an attendance code")
	// ErrMalformedTimestamp means the timestamp segment does not parse as a date.
	ErrMalformedTimestamp = errors.New("attendance code has an invalid timestamp")
	// ErrExpiredCode means the code was minted on a different calendar day.
	ErrExpiredCode = errors.New("attendance code was not generated today")
)

// timestamp layouts accepted in the second segment, tried in order.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Generate mints a code for the given instant: attendance_<RFC3339>_<salt>.
func Generate(now time.Time) string {
	return prefix + now.Format(time.RFC3339) + "_" + uuid.NewString()[:8]
}

// Validate checks a scanned code against now. On success it returns the
// instant the code was minted. Failures are one of ErrMalformedCode,
// ErrMalformedTimestamp or ErrExpiredCode, in that order of precedence.
func Validate(code string, now time.Time) (time.Time, error) {
	if !strings.HasPrefix(code, prefix) {
		return time.Time{}, ErrMalformedCode
	}
	tsPart, _, _ := strings.Cut(code[len(prefix):], "_")
	issued, err := parseTimestamp(tsPart)
	if err != nil {
		return time.Time{}, ErrMalformedTimestamp
	}
	// Calendar-day comparison in server-local time: a code minted at 00:00:01
	// stays valid until 23:59:59, no matter when it is scanned that day.
	if !sameDay(issued.In(now.Location()), now) {
		return issued, ErrExpiredCode
	}
	return issued, nil
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
