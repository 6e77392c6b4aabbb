package common

import "errors"

// Sentinel errors shared by every feature. Handlers use these to map
// failures onto HTTP status codes; everything else is treated as a
// storage failure and gets wrapped with %w.

// Validation errors, rejected before any storage access.
var (
	// ErrInvalidUserID rejects empty, oversized, or whitespace user ids.
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrUnknownCategory rejects categories outside the six fixed values.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrInvalidQualityScore rejects post quality scores outside [0,10].
	ErrInvalidQualityScore = errors.New("quality score must be between 0 and 10")
	// ErrInvalidOriginality rejects originality distances outside [0,1].
	ErrInvalidOriginality = errors.New("originality distance must be between 0 and 1")
	// ErrInvalidPoints rejects non-positive point amounts.
	ErrInvalidPoints = errors.New("points must be positive")
	// ErrUnknownOneTimeEvent rejects events other than registration and
	// verification.
	ErrUnknownOneTimeEvent = errors.New("unknown one-time event")
)

// ErrRunNotFound is returned when no analysis run has the requested id.
var ErrRunNotFound = errors.New("analysis run not found")

// ErrUnauthorized is returned on a missing or invalid admin token.
var ErrUnauthorized = errors.New("unauthorized")
