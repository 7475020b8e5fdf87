package convctx

import "testing"

func TestMarkerAllocator_DeterministicAcrossAllocators(t *testing.T) {
	a := &MarkerAllocator{}
	b := &MarkerAllocator{}

	for i := 0; i < 5; i++ {
		ta, tb := a.Next(), b.Next()
		if ta != tb {
			t.Fatalf("allocator %d: got %q and %q, want identical tokens for the same sequence position", i, ta, tb)
		}
	}
}

func TestMarkerAllocator_UniqueWithinOneConversion(t *testing.T) {
	a := &MarkerAllocator{}
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok := a.Next()
		if seen[tok] {
			t.Fatalf("duplicate marker token %q at iteration %d", tok, i)
		}
		seen[tok] = true
	}
}
