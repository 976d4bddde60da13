package testfixtures

import (
	"slices"
	"testing"
)

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("res")

	first := gen.Next()
	second := gen.Next()

	if first != "res-1" || second != "res-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
	if issued := gen.Issued(); !slices.Equal(issued, []string{"res-1", "res-2"}) {
		t.Fatalf("unexpected issued list: %v", issued)
	}
}

func TestIDGeneratorCanReset(t *testing.T) {
	gen := NewIDGenerator("")
	_ = gen.Next()
	gen.SetCounter(0)
	gen.SetPrefix("tok")

	if next := gen.Next(); next != "tok-1" {
		t.Fatalf("expected tok-1 after reset, got %q", next)
	}
}
