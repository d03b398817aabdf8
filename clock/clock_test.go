package clock

import "testing"

// TestWrapCorrectForward covers invariant 9 in spec.md §8: a PCR of
// 0x1FFFFFFFF immediately followed by 0x0 is a forward wrap, not a
// backwards jump.
func TestWrapCorrectForward(t *testing.T) {
	ref := Ticks90k(0x1_FFFF_FFFF)
	got := WrapCorrectTicks(ref, true, 0x0)
	want := Ticks90k(Roll)
	if got != want {
		t.Fatalf("WrapCorrectTicks(%#x, true, 0) = %#x, want %#x", uint64(ref), uint64(got), uint64(want))
	}
}

// TestWrapCorrectIdempotent covers invariant 6: wrap_correct is idempotent.
func TestWrapCorrectIdempotent(t *testing.T) {
	ref := Ticks90k(10_000_000)
	cases := []Ticks90k{0, 5_000_000, 9_999_999, 10_000_001, 0x1_FFFF_FF00}
	for _, c := range cases {
		once := WrapCorrectTicks(ref, true, c)
		twice := WrapCorrectTicks(ref, true, once)
		if once != twice {
			t.Errorf("WrapCorrectTicks not idempotent for %#x: once=%#x twice=%#x", uint64(c), uint64(once), uint64(twice))
		}
	}
}

// TestWrapCorrectNoRef covers the "no reference yet" case: t is returned
// unmodified.
func TestWrapCorrectNoRef(t *testing.T) {
	got := WrapCorrectTicks(0, false, 12345)
	if got != 12345 {
		t.Fatalf("got %d, want 12345", got)
	}
}

// TestWrapCorrectSmallJitter ensures a DTS legitimately slightly behind a
// prior PCR (well under half a roll) is NOT treated as a wrap.
func TestWrapCorrectSmallJitter(t *testing.T) {
	ref := Ticks90k(1_000_000)
	got := WrapCorrectTicks(ref, true, 900_000)
	if got != 900_000 {
		t.Fatalf("small backwards jitter was wrapped: got %d", got)
	}
}

func TestTicks90kConversionsRoundTrip(t *testing.T) {
	// 90000 ticks == 1 second == 1_000_000 microseconds.
	us := Ticks90k(90000).ToMicro()
	if us != 1_000_000 {
		t.Fatalf("ToMicro: got %d, want 1000000", us)
	}
	back := FromMicro(us)
	if back != 90000 {
		t.Fatalf("FromMicro: got %d, want 90000", back)
	}
}

func TestPCRStateUpdateFirst(t *testing.T) {
	s := NewPCRState()
	corrected, first := s.Update(1000)
	if !first {
		t.Fatal("expected first=true on initial PCR")
	}
	if corrected != 1000 || s.First != 1000 || s.Current != 1000 {
		t.Fatalf("unexpected state after first update: %+v", s)
	}
	corrected, first = s.Update(2000)
	if first {
		t.Fatal("expected first=false on second PCR")
	}
	if corrected != 2000 || s.Current != 2000 || s.First != 1000 {
		t.Fatalf("unexpected state after second update: %+v", s)
	}
}

func TestPCRStateLearnOffsetOnce(t *testing.T) {
	s := NewPCRState()
	s.OffsetFix = 80_000_000 // arbitrary non-default for the test
	s.LearnOffset()
	if !s.HasOffset || s.PCROffset != 80_000_000 {
		t.Fatalf("LearnOffset did not apply fix: %+v", s)
	}
	s.OffsetFix = 1
	s.LearnOffset() // must be a no-op now
	if s.PCROffset != 80_000_000 {
		t.Fatalf("LearnOffset re-armed after being set: %+v", s)
	}
}
