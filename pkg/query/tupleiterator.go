package query

import "github.com/mnohosten/heapstore/pkg/types"

// TupleIterator replays a materialized slice of tuples. The aggregate
// operator builds one over its finished group results; tests build them
// directly as upstream fixtures.
type TupleIterator struct {
	tuples []*types.Tuple
	schema *types.TableSchema
	pos    int
	open   bool
}

// NewTupleIterator wraps tuples, which must already conform to schema.
func NewTupleIterator(tuples []*types.Tuple, schema *types.TableSchema) *TupleIterator {
	return &TupleIterator{tuples: tuples, schema: schema}
}

func (t *TupleIterator) Open() error {
	t.pos = 0
	t.open = true
	return nil
}

func (t *TupleIterator) Next() (*types.Tuple, error) {
	if !t.open {
		panic("query: next on closed operator")
	}
	if t.pos >= len(t.tuples) {
		return nil, nil
	}
	tuple := t.tuples[t.pos]
	t.pos++
	return tuple, nil
}

func (t *TupleIterator) Close() error {
	if !t.open {
		panic("query: close on closed operator")
	}
	t.open = false
	return nil
}

func (t *TupleIterator) Rewind() error {
	if !t.open {
		panic("query: rewind on closed operator")
	}
	t.pos = 0
	return nil
}

func (t *TupleIterator) GetSchema() *types.TableSchema { return t.schema }
