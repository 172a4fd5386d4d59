package core

import (
	"errors"
	"fmt"
	"math"
)

// Domain errors - centralized error definitions
var (
	// ErrMissingStratumData marks a stratum with no qualifying biological samples.
	// Recovered locally by gap filling; never fatal on its own.
	ErrMissingStratumData = errors.New("missing stratum data")

	// ErrNoKnownStrata is returned when gap filling has no donor stratum at all.
	ErrNoKnownStrata = fmt.Errorf("%w: no stratum has a known value", ErrMissingStratumData)

	// ErrInconsistentApportionment marks an apportioned total that diverges from the kriged total.
	ErrInconsistentApportionment = errors.New("apportioned biomass does not match kriged biomass")

	// ErrMalformedInput marks an absent linkage (haul without stratum, unknown column, bad row).
	ErrMalformedInput = errors.New("malformed input")

	ErrUnmappedHaul   = fmt.Errorf("%w: haul not mapped to a stratum", ErrMalformedInput)
	ErrEmptySelection = fmt.Errorf("%w: selection contains no transect intervals", ErrMalformedInput)
	ErrInvalidBins    = fmt.Errorf("%w: bin centers must be strictly increasing with at least two values", ErrMalformedInput)
)

// NewMalformedInputError wraps ErrMalformedInput with context
func NewMalformedInputError(what string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformedInput, what, reason)
}

// NewMissingStratumError wraps ErrMissingStratumData with the offending stratum
func NewMissingStratumError(table string, stratum int) error {
	return fmt.Errorf("%w: %s has no value for stratum %d", ErrMissingStratumData, table, stratum)
}

// IsMalformedInput reports whether err stems from malformed input
func IsMalformedInput(err error) bool {
	return errors.Is(err, ErrMalformedInput)
}

// IsMissingStratumData reports whether err stems from an absent stratum value
func IsMissingStratumData(err error) bool {
	return errors.Is(err, ErrMissingStratumData)
}

// SafeDiv divides num by den. When the quotient is undefined (zero or
// non-finite denominator, NaN operands) it returns 0 and false.
func SafeDiv(num, den float64) (float64, bool) {
	if den == 0 || math.IsNaN(den) || math.IsInf(den, 0) || math.IsNaN(num) {
		return 0, false
	}
	return num / den, true
}

// DivOr divides num by den, returning fallback when the quotient is undefined.
func DivOr(num, den, fallback float64) float64 {
	if v, ok := SafeDiv(num, den); ok {
		return v
	}
	return fallback
}
