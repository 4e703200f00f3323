package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/mnohosten/heapstore/pkg/ids"
)

// countHeaderSize is the size of the little-endian page-count header at
// the start of a heap file. Only the low bytes are meaningful; the
// header is padded to keep page 0 aligned on a round offset.
const countHeaderSize = 8

// HeapFile is an append-growable, random-access file of fixed-size
// pages. The page count lives in the first 8 bytes of the file; page k
// occupies bytes [8+k*PageSize, 8+(k+1)*PageSize). All I/O is positional
// (ReadAt/WriteAt); no code path relies on a shared file cursor.
type HeapFile struct {
	mu   sync.RWMutex
	file *os.File

	readCount  int64
	writeCount int64
}

// NewHeapFile opens (creating if absent) a heap file at path. A freshly
// created file is initialized with a zero page count.
func NewHeapFile(path string) (*HeapFile, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("storage: open heap file %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("storage: stat heap file %s: %w", path, err)
	}

	hf := &HeapFile{file: file}
	if info.Size() == 0 {
		if err := hf.writeCountLocked(0); err != nil {
			file.Close()
			return nil, err
		}
	}
	return hf, nil
}

// NumPages returns the number of pages currently stored in the file.
func (hf *HeapFile) NumPages() (ids.PageID, error) {
	hf.mu.RLock()
	defer hf.mu.RUnlock()
	atomic.AddInt64(&hf.readCount, 1)
	return hf.numPagesLocked()
}

func (hf *HeapFile) numPagesLocked() (ids.PageID, error) {
	header := make([]byte, countHeaderSize)
	if _, err := hf.file.ReadAt(header, 0); err != nil {
		return 0, fmt.Errorf("storage: read page count: %w: %v", ErrIO, err)
	}
	return ids.PageID(binary.LittleEndian.Uint16(header)), nil
}

func (hf *HeapFile) writeCountLocked(count ids.PageID) error {
	header := make([]byte, countHeaderSize)
	binary.LittleEndian.PutUint16(header, uint16(count))
	if _, err := hf.file.WriteAt(header, 0); err != nil {
		return fmt.Errorf("storage: write page count: %w: %v", ErrIO, err)
	}
	return nil
}

func pageOffset(pid ids.PageID) int64 {
	return int64(countHeaderSize) + int64(pid)*int64(PageSize)
}

// ReadPageFromFile reads and reconstructs page pid. It fails with
// ErrInvalidPage if pid is not less than the current page count.
func (hf *HeapFile) ReadPageFromFile(pid ids.PageID) (*Page, error) {
	hf.mu.RLock()
	defer hf.mu.RUnlock()
	atomic.AddInt64(&hf.readCount, 1)

	numPages, err := hf.numPagesLocked()
	if err != nil {
		return nil, err
	}
	if pid >= numPages {
		return nil, fmt.Errorf("storage: page %d (have %d pages): %w", pid, numPages, ErrInvalidPage)
	}

	image := make([]byte, PageSize)
	if _, err := hf.file.ReadAt(image, pageOffset(pid)); err != nil {
		return nil, fmt.Errorf("storage: read page %d: %w: %v", pid, ErrIO, err)
	}

	return FromBytes(image)
}

// WritePageToFile persists page. If its identifier is within the
// current page count, the page is overwritten in place; otherwise it is
// treated as a new append: the on-disk count is incremented first, then
// the page bytes are written. Callers are expected to append with
// page.ID() == NumPages().
func (hf *HeapFile) WritePageToFile(page *Page) error {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	atomic.AddInt64(&hf.writeCount, 1)

	numPages, err := hf.numPagesLocked()
	if err != nil {
		return err
	}

	if page.ID() >= numPages {
		if err := hf.writeCountLocked(page.ID() + 1); err != nil {
			return err
		}
	}

	if _, err := hf.file.WriteAt(page.GetBytes(), pageOffset(page.ID())); err != nil {
		return fmt.Errorf("storage: write page %d: %w: %v", page.ID(), ErrIO, err)
	}
	return nil
}

// ReadCount returns the number of read operations performed, for
// profiling. It is not persisted.
func (hf *HeapFile) ReadCount() int64 { return atomic.LoadInt64(&hf.readCount) }

// WriteCount returns the number of write operations performed, for
// profiling. It is not persisted.
func (hf *HeapFile) WriteCount() int64 { return atomic.LoadInt64(&hf.writeCount) }

// Close releases the underlying OS file handle.
func (hf *HeapFile) Close() error {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	return hf.file.Close()
}
