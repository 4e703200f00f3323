// Package query implements the pull-based operator contract and the
// streaming grouped Aggregate operator that sits on top of the storage
// layer.
package query

import "github.com/mnohosten/heapstore/pkg/types"

// OpIterator is the pull-based protocol every operator honors: open,
// next, close, rewind, get_schema. Next returns (nil, nil) at end of
// stream. Calling Next, Close, or Rewind on a closed operator is a
// contract violation and panics rather than returning an error.
type OpIterator interface {
	Open() error
	Next() (*types.Tuple, error)
	Close() error
	Rewind() error
	GetSchema() *types.TableSchema
}
