package qrtoken

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	code := Generate(now)

	require.True(t, strings.HasPrefix(code, "attendance_"))
	assert.Len(t, strings.Split(code, "_"), 3)

	issued, err := Validate(code, now)
	require.NoError(t, err)
	assert.True(t, issued.Equal(now))
}

func TestValidateSameDayAnyTime(t *testing.T) {
	minted := time.Date(2025, 3, 14, 0, 0, 1, 0, time.UTC)
	code := Generate(minted)

	for _, scan := range []time.Time{
		time.Date(2025, 3, 14, 0, 0, 2, 0, time.UTC),
		time.Date(2025, 3, 14, 12, 30, 0, 0, time.UTC),
		time.Date(2025, 3, 14, 23, 59, 59, 0, time.UTC),
	} {
		_, err := Validate(code, scan)
		assert.NoError(t, err, "scan at %s", scan)
	}
}

func TestValidateOtherDayExpired(t *testing.T) {
	minted := time.Date(2025, 3, 14, 23, 59, 59, 0, time.UTC)
	code := Generate(minted)

	for _, scan := range []time.Time{
		time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 13, 23, 59, 59, 0, time.UTC),
		time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	} {
		_, err := Validate(code, scan)
		assert.ErrorIs(t, err, ErrExpiredCode, "scan at %s", scan)
	}
}

func TestValidateMissingPrefix(t *testing.T) {
	now := time.Now()
	for _, code := range []string{
		"",
		"lunch_2025-03-14T09:00:00Z_abc123",
		"Attendance_2025-03-14T09:00:00Z_abc123",
		"2025-03-14T09:00:00Z",
	} {
		_, err := Validate(code, now)
		assert.ErrorIs(t, err, ErrMalformedCode, "code %q", code)
	}
}

func TestValidateBadTimestamp(t *testing.T) {
	now := time.Now()
	for _, code := range []string{
		"attendance_",
		"attendance_notadate_abc123",
		"attendance_2025-13-40T99:00:00Z_abc123",
	} {
		_, err := Validate(code, now)
		assert.ErrorIs(t, err, ErrMalformedTimestamp, "code %q", code)
	}
}

func TestValidateDateOnlyTimestamp(t *testing.T) {
	_, err := Validate("attendance_2025-03-14_abc123", time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
}
