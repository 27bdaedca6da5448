// Package geo decides whether a reported coordinate is close enough to the
// campus reference point to count for attendance.
package geo

import (
	"fmt"
	"math"
)

// MetersPerDegree is the planar approximation used for the displayed distance.
const MetersPerDegree = 111000

// DefaultToleranceDegrees is the per-axis threshold, roughly 200 meters.
const DefaultToleranceDegrees = 0.002

// Point is a geographic coordinate.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the point is finite and within coordinate ranges.
func (p Point) Valid() bool {
	return isFinite(p.Latitude) && isFinite(p.Longitude) &&
		p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// CheckResult is the outcome of a proximity check. Message is always set so
// the client can show the distance whether or not the check passed.
type CheckResult struct {
	IsNearby         bool
	DistanceInMeters int
	Message          string
}

// CheckLocation compares a reported coordinate against ref. The check is a
// bounding square: both axis differences must be within tolerance degrees.
// The reported distance is the larger axis difference converted to meters,
// deliberately not great-circle distance.
func CheckLocation(latitude, longitude float64, ref Point, tolerance float64) CheckResult {
	latDiff := math.Abs(latitude - ref.Latitude)
	lonDiff := math.Abs(longitude - ref.Longitude)
	meters := int(math.Round(math.Max(latDiff, lonDiff) * MetersPerDegree))
	limit := int(math.Round(tolerance * MetersPerDegree))

	return CheckResult{
		IsNearby:         latDiff <= tolerance && lonDiff <= tolerance,
		DistanceInMeters: meters,
		Message: fmt.Sprintf(
			"You are about %d meters from campus. Attendance requires being within %d meters of the building.",
			meters, limit),
	}
}
