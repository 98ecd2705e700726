package netadapter

import "testing"

func TestGenerateIDIsUnique(t *testing.T) {
	a, err := GenerateID()
	if err != nil {
		t.Fatalf("GenerateID: unexpected error: %v", err)
	}
	b, err := GenerateID()
	if err != nil {
		t.Fatalf("GenerateID: unexpected error: %v", err)
	}
	if a.IsEqual(b) {
		t.Fatal("two independently generated IDs collided")
	}
}

func TestIDIsEqual(t *testing.T) {
	a, err := GenerateID()
	if err != nil {
		t.Fatalf("GenerateID: unexpected error: %v", err)
	}
	b := *a
	if !a.IsEqual(&b) {
		t.Fatal("IsEqual: a copy of an ID should equal the original")
	}
}

func TestIDStringOnNil(t *testing.T) {
	var id *ID
	if id.String() != "<unknown>" {
		t.Fatalf("String() on a nil ID = %q, want %q", id.String(), "<unknown>")
	}
}
