// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Pagination constants
const (
	// DefaultPageSize is the default number of identities fetched per listing page
	DefaultPageSize = 1000
)

// Cache constants
const (
	// CacheKeyPrefix prefixes every cached comparison key
	CacheKeyPrefix = "fingerprint_match"
)

// Presentation constants
const (
	// BirthDateLayout is the display format for birth dates (dd.mm.yyyy)
	BirthDateLayout = "02.01.2006"

	// SimilarityPercentDecimals is the number of decimals kept when reporting similarity as a percentage
	SimilarityPercentDecimals = 2

	// MessageMatched is returned to clients when an identity was found
	MessageMatched = "Identity found"

	// MessageNotMatched is returned to clients when the fingerprint is not enrolled
	MessageNotMatched = "This fingerprint is not enrolled"

	// MessageSystemError prefixes the error text returned when identification fails
	MessageSystemError = "System error"
)

// Sensor bridge constants
const (
	// BridgeCapturePath is the sensor bridge endpoint that returns a freshly captured template
	BridgeCapturePath = "capture"

	// BridgeComparePath is the sensor bridge endpoint that runs the hardware's native compare
	BridgeComparePath = "compare"

	// BridgeHealthPath is the sensor bridge liveness endpoint
	BridgeHealthPath = "health"
)
