package query

import (
	"github.com/mnohosten/heapstore/pkg/ids"
	"github.com/mnohosten/heapstore/pkg/storage"
	"github.com/mnohosten/heapstore/pkg/types"
)

// HeapScan is the leaf operator that adapts a StorageManager container
// into the OpIterator protocol, decoding each raw record through codec
// against schema.
type HeapScan struct {
	sm          *storage.StorageManager
	containerID ids.ContainerID
	tid         ids.TransactionID
	perm        ids.Permissions
	schema      *types.TableSchema
	codec       RowCodec
	it          *storage.HeapFileIterator
	open        bool
}

// NewHeapScan builds a scan over cid using tid/perm for every call into
// sm, decoding records against schema with codec.
func NewHeapScan(sm *storage.StorageManager, cid ids.ContainerID, tid ids.TransactionID, perm ids.Permissions, schema *types.TableSchema, codec RowCodec) *HeapScan {
	return &HeapScan{sm: sm, containerID: cid, tid: tid, perm: perm, schema: schema, codec: codec}
}

func (h *HeapScan) Open() error {
	h.it = h.sm.GetIterator(h.containerID, h.tid, h.perm)
	h.open = true
	return nil
}

func (h *HeapScan) Next() (*types.Tuple, error) {
	if !h.open {
		panic("query: next on closed operator")
	}
	raw, ok := h.it.Next()
	if !ok {
		return nil, nil
	}
	return h.codec.DecodeRow(raw, h.schema)
}

func (h *HeapScan) Close() error {
	if !h.open {
		panic("query: close on closed operator")
	}
	h.open = false
	return nil
}

func (h *HeapScan) Rewind() error {
	if !h.open {
		panic("query: rewind on closed operator")
	}
	if err := h.Close(); err != nil {
		return err
	}
	return h.Open()
}

func (h *HeapScan) GetSchema() *types.TableSchema { return h.schema }
