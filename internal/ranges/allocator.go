package ranges

import "sort"

// Claim is the allocator's view of an existing batch: which batch claims
// which interval. Batches created before range tracking carry no range;
// their Range pointer is nil and the allocator skips them. That
// filtering is the documented contract, not a defensive fallback.
type Claim struct {
	BatchNumber int
	Range       *Range
}

// wellFormed returns the claims that carry a valid range, sorted by
// ascending start unit. The input slice is never mutated.
func wellFormed(claims []Claim) []Claim {
	out := make([]Claim, 0, len(claims))
	for _, c := range claims {
		if c.Range != nil && c.Range.Valid() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Range.From < out[j].Range.From })
	return out
}

// ValidateRange checks whether next can be claimed alongside the
// existing claims inside a space of total units. Checks run in order
// and stop at the first failure so the caller always gets the most
// specific reason.
func ValidateRange(next Range, existing []Claim, total int) Check {
	if next.From < 1 {
		return fail("from must be at least 1, got %d", next.From)
	}
	if next.To < next.From {
		return fail("to must be greater than or equal to from, got %s", next)
	}
	if next.To > total {
		return fail("range %s exceeds total quantity %d", next, total)
	}
	for _, c := range wellFormed(existing) {
		if next.Overlaps(*c.Range) {
			return fail("range %s overlaps batch #%d (%s)", next, c.BatchNumber, c.Range)
		}
	}
	return pass()
}

// Gaps returns every free interval of [1, total] not claimed by an
// existing batch, in ascending order. A fully claimed space yields an
// empty slice; a space with no well-formed claims yields the whole
// space as a single gap.
func Gaps(existing []Claim, total int) []Range {
	if total < 1 {
		return nil
	}
	claims := wellFormed(existing)
	if len(claims) == 0 {
		return []Range{{From: 1, To: total}}
	}

	gaps := []Range{}
	if first := claims[0].Range; first.From > 1 {
		gaps = append(gaps, Range{From: 1, To: first.From - 1})
	}
	for i := 1; i < len(claims); i++ {
		prev, cur := claims[i-1].Range, claims[i].Range
		if cur.From-prev.To > 1 {
			gaps = append(gaps, Range{From: prev.To + 1, To: cur.From - 1})
		}
	}
	if last := claims[len(claims)-1].Range; last.To < total {
		gaps = append(gaps, Range{From: last.To + 1, To: total})
	}
	return gaps
}

// NextAvailable returns the first free interval that can hold requested
// units, clipped to exactly that many. With requested <= 0 it returns
// the first gap whole. It reports false when no gap fits. Used to
// pre-fill batch creation with a sensible default and to express
// count-only batches as a range claim.
func NextAvailable(existing []Claim, total, requested int) (Range, bool) {
	for _, gap := range Gaps(existing, total) {
		if requested <= 0 {
			return gap, true
		}
		if gap.Quantity() >= requested {
			return Range{From: gap.From, To: gap.From + requested - 1}, true
		}
	}
	return Range{}, false
}

// ValidateDisjoint verifies that the claims stay inside [1, total] and
// never touch one another. Unlike ValidateCoverage it tolerates gaps,
// so it holds at every point of a job card's life, not only when fully
// planned. The nightly integrity scan runs this over every card.
func ValidateDisjoint(existing []Claim, total int) Check {
	claims := wellFormed(existing)
	for i, c := range claims {
		if c.Range.To > total {
			return fail("batch #%d (%s) exceeds total quantity %d", c.BatchNumber, c.Range, total)
		}
		if i == 0 {
			continue
		}
		if prev := claims[i-1]; c.Range.From <= prev.Range.To {
			return fail("batch #%d (%s) overlaps batch #%d (%s)",
				c.BatchNumber, c.Range, prev.BatchNumber, prev.Range)
		}
	}
	return pass()
}

// ValidateCoverage verifies that the claims tile [1, total] exactly:
// the first claim starts at 1, every claim starts right after its
// predecessor ends, and the last claim ends at total. Used as the gate
// before a job card may be marked fully planned.
func ValidateCoverage(existing []Claim, total int) Check {
	claims := wellFormed(existing)
	if len(claims) == 0 {
		return fail("no batches cover units 1-%d", total)
	}
	if first := claims[0].Range; first.From != 1 {
		return fail("units 1-%d are not covered by any batch", first.From-1)
	}
	for i := 1; i < len(claims); i++ {
		prev, cur := claims[i-1].Range, claims[i].Range
		switch {
		case cur.From > prev.To+1:
			return fail("units %d-%d are not covered by any batch", prev.To+1, cur.From-1)
		case cur.From <= prev.To:
			return fail("batch #%d (%s) overlaps batch #%d (%s)",
				claims[i].BatchNumber, cur, claims[i-1].BatchNumber, prev)
		}
	}
	if last := claims[len(claims)-1].Range; last.To != total {
		if last.To > total {
			return fail("batch #%d (%s) exceeds total quantity %d",
				claims[len(claims)-1].BatchNumber, last, total)
		}
		return fail("units %d-%d are not covered by any batch", last.To+1, total)
	}
	return pass()
}
