package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/mnohosten/heapstore/pkg/ids"
)

func newTempHeapFile(t *testing.T) *HeapFile {
	t.Helper()
	dir := t.TempDir()
	hf, err := NewHeapFile(filepath.Join(dir, "heapfile_0"))
	if err != nil {
		t.Fatalf("NewHeapFile returned error: %v", err)
	}
	t.Cleanup(func() { hf.Close() })
	return hf
}

func TestHeapFileInsertAndReadBack(t *testing.T) {
	hf := newTempHeapFile(t)

	p0 := NewPage(0)
	p0.AddValue([]byte("page zero record"))
	if err := hf.WritePageToFile(p0); err != nil {
		t.Fatalf("WritePageToFile(0) returned error: %v", err)
	}

	p1 := NewPage(1)
	p1.AddValue([]byte("page one record"))
	if err := hf.WritePageToFile(p1); err != nil {
		t.Fatalf("WritePageToFile(1) returned error: %v", err)
	}

	numPages, err := hf.NumPages()
	if err != nil {
		t.Fatalf("NumPages returned error: %v", err)
	}
	if numPages != 2 {
		t.Fatalf("NumPages() = %d, want 2", numPages)
	}

	back0, err := hf.ReadPageFromFile(0)
	if err != nil {
		t.Fatalf("ReadPageFromFile(0) returned error: %v", err)
	}
	v, ok := back0.GetValue(0)
	if !ok || !bytes.Equal(v, []byte("page zero record")) {
		t.Errorf("page 0 slot 0 = %v, ok=%v", v, ok)
	}

	back1, err := hf.ReadPageFromFile(1)
	if err != nil {
		t.Fatalf("ReadPageFromFile(1) returned error: %v", err)
	}
	v, ok = back1.GetValue(0)
	if !ok || !bytes.Equal(v, []byte("page one record")) {
		t.Errorf("page 1 slot 0 = %v, ok=%v", v, ok)
	}
}

func TestHeapFileReadOutOfRangeFails(t *testing.T) {
	hf := newTempHeapFile(t)

	if _, err := hf.ReadPageFromFile(0); err == nil {
		t.Fatalf("ReadPageFromFile(0) on empty file unexpectedly succeeded")
	}
}

func TestHeapFileOverwriteInPlace(t *testing.T) {
	hf := newTempHeapFile(t)

	p := NewPage(0)
	p.AddValue([]byte("original"))
	if err := hf.WritePageToFile(p); err != nil {
		t.Fatalf("WritePageToFile returned error: %v", err)
	}

	p2 := NewPage(0)
	p2.AddValue([]byte("replaced"))
	if err := hf.WritePageToFile(p2); err != nil {
		t.Fatalf("WritePageToFile (overwrite) returned error: %v", err)
	}

	numPages, _ := hf.NumPages()
	if numPages != 1 {
		t.Fatalf("NumPages() after overwrite = %d, want 1", numPages)
	}

	back, err := hf.ReadPageFromFile(0)
	if err != nil {
		t.Fatalf("ReadPageFromFile returned error: %v", err)
	}
	v, ok := back.GetValue(0)
	if !ok || !bytes.Equal(v, []byte("replaced")) {
		t.Errorf("slot 0 after overwrite = %v, ok=%v, want replaced", v, ok)
	}
}

func TestHeapFilePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "heapfile_0")

	hf, err := NewHeapFile(path)
	if err != nil {
		t.Fatalf("NewHeapFile returned error: %v", err)
	}
	p := NewPage(0)
	p.AddValue([]byte("persisted"))
	if err := hf.WritePageToFile(p); err != nil {
		t.Fatalf("WritePageToFile returned error: %v", err)
	}
	hf.Close()

	reopened, err := NewHeapFile(path)
	if err != nil {
		t.Fatalf("reopening NewHeapFile returned error: %v", err)
	}
	defer reopened.Close()

	numPages, _ := reopened.NumPages()
	if numPages != 1 {
		t.Fatalf("NumPages() after reopen = %d, want 1", numPages)
	}
	back, err := reopened.ReadPageFromFile(0)
	if err != nil {
		t.Fatalf("ReadPageFromFile after reopen returned error: %v", err)
	}
	v, ok := back.GetValue(0)
	if !ok || !bytes.Equal(v, []byte("persisted")) {
		t.Errorf("slot 0 after reopen = %v, ok=%v", v, ok)
	}
}

func TestHeapFileProfilingCounters(t *testing.T) {
	hf := newTempHeapFile(t)

	p := NewPage(0)
	p.AddValue([]byte("x"))
	hf.WritePageToFile(p)
	hf.ReadPageFromFile(0)
	hf.ReadPageFromFile(0)

	if got := hf.WriteCount(); got != 1 {
		t.Errorf("WriteCount() = %d, want 1", got)
	}
	if got := hf.ReadCount(); got < 2 {
		t.Errorf("ReadCount() = %d, want at least 2", got)
	}
}

func TestHeapFileLayoutOffsets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "heapfile_0")
	hf, err := NewHeapFile(path)
	if err != nil {
		t.Fatalf("NewHeapFile returned error: %v", err)
	}
	defer hf.Close()

	p := NewPage(0)
	p.AddValue([]byte("x"))
	hf.WritePageToFile(p)

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading heap file raw bytes: %v", err)
	}
	if len(raw) != countHeaderSize+PageSize {
		t.Fatalf("raw file length = %d, want %d", len(raw), countHeaderSize+PageSize)
	}

	var zero ids.PageID
	if pageOffset(zero) != countHeaderSize {
		t.Errorf("pageOffset(0) = %d, want %d", pageOffset(zero), countHeaderSize)
	}
}
