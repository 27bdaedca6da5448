package attendance

import "fmt"

// Kind classifies why a submission was rejected. The kind is surfaced verbatim
// to the client so it can decide between retrying (location permission, stale
// code) and showing a hard failure.
type Kind string

const (
	KindInvalidCoordinate   Kind = "invalid_coordinate"
	KindLocationOutOfRange  Kind = "location_out_of_range"
	KindMalformedCode       Kind = "malformed_code"
	KindMalformedTimestamp  Kind = "malformed_timestamp"
	KindExpiredCode         Kind = "expired_code"
	KindDuplicateAttendance Kind = "duplicate_attendance"
	KindGroupAmbiguous      Kind = "group_ambiguous"
	KindInternal            Kind = "internal"
)

// LocationDetails accompanies a location_out_of_range rejection.
type LocationDetails struct {
	Distance int    `json:"distance"`
	Message  string `json:"message"`
}

// Error is a classified submission failure.
type Error struct {
	Kind     Kind
	Message  string
	Details  *LocationDetails
	original error
}

func (e *Error) Error() string {
	if e.original != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.original)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.original }

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// internalError wraps an unexpected failure without leaking its detail in the
// client-facing message.
func internalError(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", original: err}
}
