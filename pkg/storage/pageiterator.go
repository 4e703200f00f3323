package storage

import "github.com/mnohosten/heapstore/pkg/ids"

// PageIterator yields a page's records in ascending slot order. It is
// consuming: constructing it materializes the ordered slot list, and
// Next advances a cursor over that snapshot.
type PageIterator struct {
	page  *Page
	slots []ids.SlotID
	pos   int
}

// NewPageIterator builds an iterator over page's live slots in ascending
// order.
func NewPageIterator(page *Page) *PageIterator {
	slots := make([]ids.SlotID, 0, len(page.entries))
	for id := range page.entries {
		slots = append(slots, id)
	}
	sortSlotIDs(slots)
	return &PageIterator{page: page, slots: slots}
}

// Next returns the next record's bytes in slot order, or false once
// exhausted.
func (it *PageIterator) Next() ([]byte, bool) {
	if it.pos >= len(it.slots) {
		return nil, false
	}
	slot := it.slots[it.pos]
	it.pos++
	value, ok := it.page.GetValue(slot)
	if !ok {
		// The slot existed when the iterator was constructed; a
		// concurrent mutation of the same *Page value during iteration
		// is a misuse the iterator does not guard against.
		return nil, false
	}
	return value, true
}
