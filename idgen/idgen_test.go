package idgen

import (
	"strings"
	"testing"
)

func TestShort_LengthAndAlphabet(t *testing.T) {
	for _, length := range []int{6, 8, 16} {
		id := Short(length)()
		if len(id) != length {
			t.Fatalf("Short(%d): got length %d", length, len(id))
		}
		for _, c := range id {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
				t.Fatalf("Short: unexpected character %q in %q", c, id)
			}
		}
	}
}

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	parts := strings.Split(id, "-")
	if len(parts) != 5 {
		t.Fatalf("UUIDv7: expected 5 parts, got %d in %q", len(parts), id)
	}
	if len(id) != 36 {
		t.Fatalf("UUIDv7: expected length 36, got %d", len(id))
	}
}

func TestUUIDv7_Uniqueness(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("UUIDv7: duplicate at iteration %d", i)
		}
		seen[id] = struct{}{}
	}
}

func TestRecordGenerators(t *testing.T) {
	tests := []struct {
		gen    Generator
		prefix string
	}{
		{Generation, "gen_"},
		{Deployment, "dep_"},
		{Audit, "aud_"},
	}
	for _, tt := range tests {
		id := tt.gen()
		if !strings.HasPrefix(id, tt.prefix) {
			t.Errorf("expected prefix %q, got %q", tt.prefix, id)
		}
		if len(id) != len(tt.prefix)+36 {
			t.Errorf("%q: unexpected length %d", id, len(id))
		}
	}
}
