package ranges

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRangeQuantity(t *testing.T) {
	cases := []struct {
		name string
		r    Range
		want int
	}{
		{"single unit", Range{From: 1, To: 1}, 1},
		{"hundred units", Range{From: 1, To: 100}, 100},
		{"offset range", Range{From: 101, To: 200}, 100},
		{"reversed is invalid", Range{From: 10, To: 5}, 0},
		{"zero based is invalid", Range{From: 0, To: 10}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.r.Quantity())
		})
	}
}

func TestRangeQuantityMatchesWidth(t *testing.T) {
	for from := 1; from <= 50; from += 7 {
		for to := from; to <= from+50; to += 11 {
			r := Range{From: from, To: to}
			require.Equal(t, to-from+1, r.Quantity())
		}
	}
}

func TestRangeOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b Range
		want bool
	}{
		{"disjoint", Range{1, 100}, Range{101, 200}, false},
		{"touching endpoints share a unit", Range{1, 5}, Range{5, 10}, true},
		{"contained", Range{1, 100}, Range{40, 60}, true},
		{"partial", Range{150, 250}, Range{101, 200}, true},
		{"identical", Range{1, 10}, Range{1, 10}, true},
		{"far apart", Range{1, 10}, Range{50, 60}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.a.Overlaps(tc.b))
			require.Equal(t, tc.want, tc.b.Overlaps(tc.a))
		})
	}
}

func TestRangeString(t *testing.T) {
	require.Equal(t, "1-100", Range{From: 1, To: 100}.String())
	require.Equal(t, "1001-2000", Range{From: 1001, To: 2000}.String())
}

func TestRangeValid(t *testing.T) {
	require.True(t, Range{From: 1, To: 1}.Valid())
	require.False(t, Range{From: 5, To: 4}.Valid())
	require.False(t, Range{From: 0, To: 4}.Valid())
	require.False(t, Range{}.Valid())
}
