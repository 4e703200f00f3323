package types

import "testing"

func TestTupleGet(t *testing.T) {
	tuple := NewTuple(IntField{Value: 1}, StringField{Value: "G"})

	f, err := tuple.Get(1)
	if err != nil {
		t.Fatalf("Get(1) returned unexpected error: %v", err)
	}
	if f.String() != "G" {
		t.Errorf("Get(1) = %v, want G", f)
	}

	if _, err := tuple.Get(2); err == nil {
		t.Fatalf("expected error getting out-of-range field")
	}
}

func TestTupleCloneIsIndependent(t *testing.T) {
	original := NewTuple(IntField{Value: 1})
	clone := original.Clone()

	clone.Fields[0] = IntField{Value: 2}

	got, _ := original.Get(0)
	if got.(IntField).Value != 1 {
		t.Errorf("mutating clone affected original: got %v", got)
	}
}

func TestTupleString(t *testing.T) {
	tuple := NewTuple(IntField{Value: 1}, StringField{Value: "E"})
	want := "(1, E)"
	if got := tuple.String(); got != want {
		t.Errorf("Tuple.String() = %q, want %q", got, want)
	}
}
