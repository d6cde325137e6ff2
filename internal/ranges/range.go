// Package ranges implements arithmetic over the closed, 1-based unit
// intervals that production batches claim out of a job card's quantity
// space, plus the allocator that hands out free intervals.
package ranges

import "fmt"

// Range is a closed interval [From, To] of unit numbers. Units are
// 1-based and inclusive on both ends: [1,100] owns exactly 100 units.
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Valid reports whether the range is well formed. Zero-length and
// reversed ranges are not representable as valid claims.
func (r Range) Valid() bool {
	return r.From >= 1 && r.To >= r.From
}

// Quantity returns the number of units the range owns.
func (r Range) Quantity() int {
	if !r.Valid() {
		return 0
	}
	return r.To - r.From + 1
}

// Overlaps reports whether two ranges share at least one unit. Ranges
// are unit-granular, so touching endpoints overlap: [1,5] and [5,10]
// both claim unit 5.
func (r Range) Overlaps(other Range) bool {
	return r.From <= other.To && other.From <= r.To
}

// String formats the range as "from-to" for messages and labels.
func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.From, r.To)
}

// Check is a structured validation result. The allocator never returns
// Go errors for business rejections so callers can surface the reason
// as an inline form message.
type Check struct {
	Valid  bool   `json:"isValid"`
	Reason string `json:"error,omitempty"`
}

func pass() Check {
	return Check{Valid: true}
}

func fail(format string, args ...any) Check {
	return Check{Valid: false, Reason: fmt.Sprintf(format, args...)}
}
