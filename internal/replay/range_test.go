package replay

import (
	"math"
	"reflect"
	"testing"
)

func TestSplitRange(t *testing.T) {
	cases := []struct {
		name            string
		from, to, batch uint64
		want            []BlockRange
	}{
		{
			name: "even batches", from: 100, to: 105, batch: 2,
			want: []BlockRange{{From: 100, To: 101}, {From: 102, To: 103}, {From: 104, To: 105}},
		},
		{
			name: "short tail", from: 1, to: 5, batch: 2,
			want: []BlockRange{{From: 1, To: 2}, {From: 3, To: 4}, {From: 5, To: 5}},
		},
		{name: "single", from: 5, to: 5, batch: 10, want: []BlockRange{{From: 5, To: 5}}},
		{
			name: "ends at max", from: math.MaxUint64 - 2, to: math.MaxUint64, batch: 2,
			want: []BlockRange{{From: math.MaxUint64 - 2, To: math.MaxUint64 - 1}, {From: math.MaxUint64, To: math.MaxUint64}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SplitRange(tc.from, tc.to, tc.batch)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ranges mismatch: %+v != %+v", got, tc.want)
			}
		})
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	if _, err := SplitRange(10, 9, 1); err == nil {
		t.Fatalf("expected error for invalid range")
	}
	if _, err := SplitRange(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}
