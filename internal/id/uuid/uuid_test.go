// Package uuid includes tests for the UUID generator wrapper.
package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
)

// TestGeneratorNewID ensures generated IDs are unique, valid and version 7.
func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	id2, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected unique IDs, got %s and %s", id1, id2)
	}
	parsed, err := goUUID.Parse(id1)
	if err != nil {
		t.Fatalf("id1 not valid UUID: %v", err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected version 7, got %d", parsed.Version())
	}
	if !Valid(id2) {
		t.Fatalf("expected %s to be valid", id2)
	}
}

func TestValid(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"", "abc", "not-a-uuid-at-all-but-36-chars-long!", "{0190a5c8-7b1e-7cc2-9a4e-1f2a3b4c5d6e}"} {
		if Valid(id) {
			t.Errorf("expected %q to be rejected", id)
		}
	}
	if !Valid("0190a5c8-7b1e-7cc2-9a4e-1f2a3b4c5d6e") {
		t.Error("expected canonical uuid to be accepted")
	}
}
