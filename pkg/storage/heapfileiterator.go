package storage

import "github.com/mnohosten/heapstore/pkg/ids"

// HeapFileIterator yields every live record of a heap file in (page,
// slot) order. It pre-materializes all records at construction time and
// keeps no reference to the heap file afterwards, so removing the
// container from the storage manager once the iterator exists does not
// affect the records it yields.
type HeapFileIterator struct {
	containerID ids.ContainerID
	tid         ids.TransactionID
	records     [][]byte
	pos         int
}

// NewHeapFileIterator materializes every record in hf, reading pages in
// ascending page-id order and records in ascending slot order within
// each page.
func NewHeapFileIterator(containerID ids.ContainerID, tid ids.TransactionID, hf *HeapFile) (*HeapFileIterator, error) {
	numPages, err := hf.NumPages()
	if err != nil {
		return nil, err
	}

	var records [][]byte
	for pid := ids.PageID(0); pid < numPages; pid++ {
		page, err := hf.ReadPageFromFile(pid)
		if err != nil {
			return nil, err
		}
		it := NewPageIterator(page)
		for {
			value, ok := it.Next()
			if !ok {
				break
			}
			records = append(records, value)
		}
	}

	return &HeapFileIterator{
		containerID: containerID,
		tid:         tid,
		records:     records,
	}, nil
}

// Next returns the next record's bytes, or false once exhausted.
func (it *HeapFileIterator) Next() ([]byte, bool) {
	if it.pos >= len(it.records) {
		return nil, false
	}
	value := it.records[it.pos]
	it.pos++
	return value, true
}

// ContainerID returns the container this iterator was built for.
func (it *HeapFileIterator) ContainerID() ids.ContainerID { return it.containerID }
