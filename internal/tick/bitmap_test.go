package tick

import "testing"

func newBitmap(t *testing.T, spacing int32, ticks ...int32) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, tick := range ticks {
		if err := r.FlipTick(tick, spacing); err != nil {
			t.Fatalf("flip %d: %v", tick, err)
		}
	}
	r.Reset()
	return r
}

func TestNextInitializedTickWithinOneWord(t *testing.T) {
	r := newBitmap(t, 1, -200, -55, -4, 70, 78, 84, 139, 240, 535)

	cases := []struct {
		tick            int32
		lte             bool
		wantNext        int32
		wantInitialized bool
	}{
		{tick: 78, lte: false, wantNext: 84, wantInitialized: true},
		{tick: -55, lte: false, wantNext: -4, wantInitialized: true},
		{tick: 77, lte: false, wantNext: 78, wantInitialized: true},
		{tick: -56, lte: false, wantNext: -55, wantInitialized: true},
		{tick: 255, lte: false, wantNext: 511, wantInitialized: false},
		{tick: -257, lte: false, wantNext: -200, wantInitialized: true},
		{tick: 383, lte: false, wantNext: 511, wantInitialized: false},
		{tick: 508, lte: false, wantNext: 511, wantInitialized: false},
		{tick: 0, lte: false, wantNext: 70, wantInitialized: true},
		{tick: 78, lte: true, wantNext: 78, wantInitialized: true},
		{tick: 79, lte: true, wantNext: 78, wantInitialized: true},
		{tick: 258, lte: true, wantNext: 256, wantInitialized: false},
		{tick: 256, lte: true, wantNext: 256, wantInitialized: false},
		{tick: 72, lte: true, wantNext: 70, wantInitialized: true},
		{tick: -257, lte: true, wantNext: -512, wantInitialized: false},
		{tick: 1023, lte: true, wantNext: 768, wantInitialized: false},
		{tick: 900, lte: true, wantNext: 768, wantInitialized: false},
		{tick: -1, lte: true, wantNext: -4, wantInitialized: true},
	}

	for _, tc := range cases {
		next, initialized := r.NextInitializedTickWithinOneWord(tc.tick, 1, tc.lte)
		if next != tc.wantNext || initialized != tc.wantInitialized {
			t.Fatalf("tick %d lte %v: got (%d, %v), want (%d, %v)",
				tc.tick, tc.lte, next, initialized, tc.wantNext, tc.wantInitialized)
		}
	}
}

func TestNextInitializedTickWithSpacing(t *testing.T) {
	r := newBitmap(t, 60, -600, 600)

	cases := []struct {
		tick            int32
		lte             bool
		wantNext        int32
		wantInitialized bool
	}{
		{tick: 0, lte: true, wantNext: 0, wantInitialized: false},
		{tick: 0, lte: false, wantNext: 600, wantInitialized: true},
		{tick: -1, lte: true, wantNext: -600, wantInitialized: true},
		{tick: -60, lte: true, wantNext: -600, wantInitialized: true},
		{tick: -601, lte: true, wantNext: -15360, wantInitialized: false},
		{tick: 599, lte: false, wantNext: 600, wantInitialized: true},
		{tick: 600, lte: false, wantNext: 15300, wantInitialized: false},
		{tick: -660, lte: false, wantNext: -600, wantInitialized: true},
	}

	for _, tc := range cases {
		next, initialized := r.NextInitializedTickWithinOneWord(tc.tick, 60, tc.lte)
		if next != tc.wantNext || initialized != tc.wantInitialized {
			t.Fatalf("tick %d lte %v: got (%d, %v), want (%d, %v)",
				tc.tick, tc.lte, next, initialized, tc.wantNext, tc.wantInitialized)
		}
	}
}

func TestFlipTick(t *testing.T) {
	r := NewRegistry()
	if err := r.FlipTick(-230, 1); err != nil {
		t.Fatalf("flip: %v", err)
	}
	if next, ok := r.NextInitializedTickWithinOneWord(-230, 1, true); !ok || next != -230 {
		t.Fatalf("expected -230 initialized, got %d %v", next, ok)
	}
	if err := r.FlipTick(-230, 1); err != nil {
		t.Fatalf("flip back: %v", err)
	}
	if _, ok := r.NextInitializedTickWithinOneWord(-230, 1, true); ok {
		t.Fatalf("expected -230 cleared")
	}
	if err := r.FlipTick(61, 60); err == nil {
		t.Fatalf("expected error for tick off spacing")
	}

	r.Revert()
	if !r.Word(-1).IsZero() {
		t.Fatalf("revert must restore the empty word")
	}
}

func TestWordUint256RoundTrip(t *testing.T) {
	w := Word{1, 0, 0, 1 << 63}
	if got := WordFromUint256(w.Uint256()); got != w {
		t.Fatalf("word mismatch: %v != %v", got, w)
	}
	if w.Uint256().BitLen() != 256 {
		t.Fatalf("expected top bit set")
	}
}
