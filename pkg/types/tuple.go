package types

import (
	"fmt"
	"strings"
)

// Tuple is a fixed-width, position-addressed row. Operators pass *Tuple
// pointers and Fields is a slice, so callers that need a private copy
// should use Clone rather than assume value semantics.
type Tuple struct {
	Fields []Field
}

// NewTuple builds a tuple from the given fields in order.
func NewTuple(fields ...Field) *Tuple {
	return &Tuple{Fields: fields}
}

// Get returns the field at position i.
func (t *Tuple) Get(i int) (Field, error) {
	if i < 0 || i >= len(t.Fields) {
		return nil, fmt.Errorf("types: field index %d out of range (width %d)", i, len(t.Fields))
	}
	return t.Fields[i], nil
}

// Width is the number of fields in the tuple.
func (t *Tuple) Width() int {
	return len(t.Fields)
}

// Clone returns a tuple with its own backing slice; the Field values
// themselves are immutable and safe to share.
func (t *Tuple) Clone() *Tuple {
	fields := make([]Field, len(t.Fields))
	copy(fields, t.Fields)
	return &Tuple{Fields: fields}
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
