package query

import "github.com/mnohosten/heapstore/pkg/types"

// Aggregate is a streaming grouped aggregation operator. It drains its
// child fully on Open (the only way to know every group's final value),
// then serves the results from an internal TupleIterator. Next, Close,
// and Rewind on a closed Aggregate are contract violations and panic,
// matching every other operator in this package.
type Aggregate struct {
	groupByFields []int
	aggFields     []AggregateField
	schema        *types.TableSchema
	child         OpIterator
	aggIter       *TupleIterator
	open          bool
}

// NewAggregate builds an Aggregate over child. groupByIndices/groupByNames
// and aggIndices/aggNames/ops must each be parallel slices; the output
// schema is the renamed group-by columns followed by one integer column
// per aggregate.
func NewAggregate(
	groupByIndices []int,
	groupByNames []string,
	aggIndices []int,
	aggNames []string,
	ops []AggOp,
	child OpIterator,
) *Aggregate {
	inputSchema := child.GetSchema()
	attrs := make([]types.Attribute, 0, len(groupByIndices)+len(aggIndices))

	for i, idx := range groupByIndices {
		attr, _ := inputSchema.At(idx)
		attrs = append(attrs, types.Attribute{Name: groupByNames[i], Type: attr.Type})
	}

	aggFields := make([]AggregateField, len(aggIndices))
	for i, idx := range aggIndices {
		aggFields[i] = AggregateField{FieldIndex: idx, Op: ops[i]}
		attrs = append(attrs, types.Attribute{Name: aggNames[i], Type: types.IntType})
	}

	return &Aggregate{
		groupByFields: groupByIndices,
		aggFields:     aggFields,
		schema:        types.NewTableSchema(attrs...),
		child:         child,
	}
}

// Open drains the child operator into an Aggregator and prepares the
// result iterator. The child is left open; Close does not close it.
func (a *Aggregate) Open() error {
	if err := a.child.Open(); err != nil {
		return err
	}

	aggregator := NewAggregator(a.groupByFields, a.aggFields, a.schema)
	for {
		tuple, err := a.child.Next()
		if err != nil {
			return err
		}
		if tuple == nil {
			break
		}
		aggregator.MergeTupleIntoGroup(tuple)
	}

	a.aggIter = aggregator.Iterator()
	if err := a.aggIter.Open(); err != nil {
		return err
	}
	a.open = true
	return nil
}

func (a *Aggregate) Next() (*types.Tuple, error) {
	if !a.open {
		panic("query: next on closed operator")
	}
	return a.aggIter.Next()
}

func (a *Aggregate) Close() error {
	if !a.open {
		panic("query: close on closed operator")
	}
	a.open = false
	return a.aggIter.Close()
}

// Rewind re-consumes the child from scratch: close then open, the same
// way HeapScan rewinds.
func (a *Aggregate) Rewind() error {
	if !a.open {
		panic("query: rewind on closed operator")
	}
	if err := a.Close(); err != nil {
		return err
	}
	return a.Open()
}

func (a *Aggregate) GetSchema() *types.TableSchema { return a.schema }
