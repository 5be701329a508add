package util

import "testing"

func TestNew(t *testing.T) {
	a := New()
	b := New()
	if len(a) != 26 || len(b) != 26 {
		t.Fatalf("ULID length: %d, %d", len(a), len(b))
	}
	if a == b {
		t.Fatal("consecutive ULIDs must differ")
	}
}

func TestNewCode(t *testing.T) {
	if got := NewCode(8); len(got) != 8 {
		t.Fatalf("NewCode(8) length: %d", len(got))
	}
	if got := NewCode(0); len(got) != 8 {
		t.Fatalf("NewCode(0) should default to 8, got %d", len(got))
	}
	if got := NewCode(4); len(got) != 4 {
		t.Fatalf("NewCode(4) length: %d", len(got))
	}
}
