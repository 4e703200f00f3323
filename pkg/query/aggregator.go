package query

import "github.com/mnohosten/heapstore/pkg/types"

// AggOp names a supported aggregate function. All aggregate output
// columns are integer typed, including Avg, which truncates toward
// zero at finalization.
type AggOp int

const (
	Sum AggOp = iota
	Count
	Max
	Min
	Avg
)

// AggregateField pairs an input column with the operation applied to it.
type AggregateField struct {
	FieldIndex int
	Op         AggOp
}

// avgKey identifies one Avg output column within one group: which group
// (by position in results) and which output column holds its running
// sum. Keying by this pair, rather than by group position alone, keeps
// multiple Avg columns in the same group from sharing a counter.
type avgKey struct {
	pos    int
	column int
}

// Aggregator accumulates groups one tuple at a time. It never sees the
// upstream operator; Aggregate drains the child and feeds tuples in here.
// Groups are matched by a linear scan in insertion order, which is the
// same tradeoff a small number of groups makes everywhere in this corpus:
// simple and cache-friendly beats a hash index at this scale.
type Aggregator struct {
	groupByFields []int
	aggFields     []AggregateField
	schema        *types.TableSchema
	results       []*types.Tuple
	avgCounts     map[avgKey]int64
}

// NewAggregator builds an aggregator that groups by groupByFields (column
// indices into the upstream schema) and computes aggFields per group. The
// output schema's first len(groupByFields) columns are the group-by
// values, followed by one column per aggFields entry.
func NewAggregator(groupByFields []int, aggFields []AggregateField, schema *types.TableSchema) *Aggregator {
	return &Aggregator{
		groupByFields: groupByFields,
		aggFields:     aggFields,
		schema:        schema,
		avgCounts:     make(map[avgKey]int64),
	}
}

// MergeTupleIntoGroup folds tuple into whichever existing group matches
// its group-by values, or starts a new group if none does.
func (a *Aggregator) MergeTupleIntoGroup(tuple *types.Tuple) {
	width := len(a.groupByFields)

	for pos, group := range a.results {
		if !a.groupMatches(group, tuple) {
			continue
		}
		for i, agg := range a.aggFields {
			column := width + i
			cur, _ := group.Get(column)
			switch agg.Op {
			case Sum:
				incoming, _ := tuple.Get(agg.FieldIndex)
				group.Fields[column] = types.IntField{Value: cur.(types.IntField).Value + incoming.(types.IntField).Value}
			case Count:
				group.Fields[column] = types.IntField{Value: cur.(types.IntField).Value + 1}
			case Max:
				incoming, _ := tuple.Get(agg.FieldIndex)
				if incoming.Compare(cur) > 0 {
					group.Fields[column] = incoming
				}
			case Min:
				incoming, _ := tuple.Get(agg.FieldIndex)
				if incoming.Compare(cur) < 0 {
					group.Fields[column] = incoming
				}
			case Avg:
				incoming, _ := tuple.Get(agg.FieldIndex)
				group.Fields[column] = types.IntField{Value: cur.(types.IntField).Value + incoming.(types.IntField).Value}
				a.avgCounts[avgKey{pos: pos, column: column}]++
			}
		}
		return
	}

	a.startGroup(tuple)
}

func (a *Aggregator) groupMatches(group, tuple *types.Tuple) bool {
	for i, idx := range a.groupByFields {
		gv, _ := group.Get(i)
		tv, _ := tuple.Get(idx)
		if gv.Compare(tv) != 0 {
			return false
		}
	}
	return true
}

func (a *Aggregator) startGroup(tuple *types.Tuple) {
	width := len(a.groupByFields)
	fields := make([]types.Field, 0, width+len(a.aggFields))

	for _, idx := range a.groupByFields {
		f, _ := tuple.Get(idx)
		fields = append(fields, f)
	}
	for _, agg := range a.aggFields {
		if agg.Op == Count {
			fields = append(fields, types.IntField{Value: 1})
			continue
		}
		f, _ := tuple.Get(agg.FieldIndex)
		fields = append(fields, f)
	}

	a.results = append(a.results, types.NewTuple(fields...))
	pos := len(a.results) - 1
	for i, agg := range a.aggFields {
		if agg.Op == Avg {
			a.avgCounts[avgKey{pos: pos, column: width + i}] = 1
		}
	}
}

// Iterator finalizes every Avg column (running sum / count, truncating
// toward zero) and returns a replayable iterator over the group results
// in insertion order.
func (a *Aggregator) Iterator() *TupleIterator {
	for key, count := range a.avgCounts {
		tuple := a.results[key.pos]
		sum, _ := tuple.Get(key.column)
		tuple.Fields[key.column] = types.IntField{Value: sum.(types.IntField).Value / count}
	}
	return NewTupleIterator(a.results, a.schema)
}
