package storage

import (
	"bufio"
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	natomic "github.com/natefinch/atomic"

	"github.com/mnohosten/heapstore/pkg/ids"
)

const (
	containersDirName = "containers"
	registryDirName   = "serde_containers"
	registryFileName  = "all_containers"
)

var logger = log.New(os.Stderr, "storage: ", 0)

// StorageManager owns a process-wide mapping from container identifier
// to heap file, and is the entry point for every record-level operation.
// The mapping is protected by a readers-writer discipline: lookups take
// a shared claim, create/remove/reset take an exclusive one.
type StorageManager struct {
	mu          sync.RWMutex
	storagePath string
	isTemp      bool
	containers  map[ids.ContainerID]*HeapFile
}

// New opens (or creates) a storage manager rooted at storagePath. If a
// registry document exists under serde_containers/all_containers, every
// container it lists is reopened from its canonical path under
// storagePath and the mapping rebuilt.
func New(storagePath string) (*StorageManager, error) {
	if err := os.MkdirAll(filepath.Join(storagePath, containersDirName), 0755); err != nil {
		return nil, fmt.Errorf("storage: create storage directory %s: %w", storagePath, err)
	}

	sm := &StorageManager{
		storagePath: storagePath,
		containers:  make(map[ids.ContainerID]*HeapFile),
	}

	registryPath := filepath.Join(storagePath, registryDirName, registryFileName)
	entries, err := readRegistry(registryPath)
	if err != nil {
		return nil, err
	}
	for cid := range entries {
		hf, err := NewHeapFile(sm.containerPath(cid))
		if err != nil {
			return nil, err
		}
		sm.containers[cid] = hf
	}

	return sm, nil
}

// NewTestManager creates a storage manager rooted at a fresh temporary
// directory, flagged so teardown removes it.
func NewTestManager() (*StorageManager, error) {
	dir, err := os.MkdirTemp("", "heapstore-sm-")
	if err != nil {
		return nil, fmt.Errorf("storage: create temp directory: %w", err)
	}
	sm, err := New(dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	sm.isTemp = true
	return sm, nil
}

// containerPath returns the canonical, storage-path-joined location of
// a container's heap file, consistently derived whether the container
// was just created or reloaded from the registry.
func (sm *StorageManager) containerPath(cid ids.ContainerID) string {
	return filepath.Join(sm.storagePath, containersDirName, fmt.Sprintf("heapfile_%d", cid))
}

// CreateContainer creates (or reopens) a heap file for cid and registers
// it. A repeated create on the same identifier replaces the entry.
func (sm *StorageManager) CreateContainer(cid ids.ContainerID) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	hf, err := NewHeapFile(sm.containerPath(cid))
	if err != nil {
		return err
	}
	sm.containers[cid] = hf
	logger.Printf("created container %d at %s", cid, sm.containerPath(cid))
	return nil
}

// CreateTable is a convenience wrapper over CreateContainer.
func (sm *StorageManager) CreateTable(cid ids.ContainerID) error {
	return sm.CreateContainer(cid)
}

// RemoveContainer deletes the heap file from disk and drops the mapping
// entry.
func (sm *StorageManager) RemoveContainer(cid ids.ContainerID) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	hf, ok := sm.containers[cid]
	if !ok {
		return fmt.Errorf("storage: remove container %d: %w", cid, ErrContainerMissing)
	}
	hf.Close()
	delete(sm.containers, cid)
	if err := os.Remove(sm.containerPath(cid)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove heap file for container %d: %w: %v", cid, ErrIO, err)
	}
	logger.Printf("removed container %d", cid)
	return nil
}

// InsertValue inserts bytes into container cid using first-fit: existing
// pages are scanned in ascending page-id order and the first that admits
// the record is used; otherwise a fresh page is appended. It panics
// (contract violation) if len(bytes) exceeds the page size.
func (sm *StorageManager) InsertValue(cid ids.ContainerID, value []byte, tid ids.TransactionID) (ids.ValueID, error) {
	if len(value) > PageSize {
		panic(fmt.Sprintf("storage: value of %d bytes exceeds page size %d", len(value), PageSize))
	}

	hf, err := sm.heapFile(cid)
	if err != nil {
		return ids.ValueID{}, err
	}

	numPages, err := hf.NumPages()
	if err != nil {
		return ids.ValueID{}, err
	}

	for pid := ids.PageID(0); pid < numPages; pid++ {
		page, err := hf.ReadPageFromFile(pid)
		if err != nil {
			return ids.ValueID{}, err
		}
		if slot, ok := page.AddValue(value); ok {
			if err := hf.WritePageToFile(page); err != nil {
				return ids.ValueID{}, err
			}
			return ids.ValueID{ContainerID: cid, PageID: pid, SlotID: slot}, nil
		}
	}

	page := NewPage(numPages)
	slot, ok := page.AddValue(value)
	if !ok {
		panic(fmt.Sprintf("storage: value of %d bytes does not fit an empty page", len(value)))
	}
	if err := hf.WritePageToFile(page); err != nil {
		return ids.ValueID{}, err
	}
	return ids.ValueID{ContainerID: cid, PageID: numPages, SlotID: slot}, nil
}

// InsertValues inserts each value in order, returning the resulting
// identifiers in the same order.
func (sm *StorageManager) InsertValues(cid ids.ContainerID, values [][]byte, tid ids.TransactionID) ([]ids.ValueID, error) {
	out := make([]ids.ValueID, 0, len(values))
	for _, v := range values {
		id, err := sm.InsertValue(cid, v, tid)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// GetValue loads the page named by id and looks up its slot.
func (sm *StorageManager) GetValue(id ids.ValueID, tid ids.TransactionID, perm ids.Permissions) ([]byte, error) {
	hf, err := sm.heapFile(id.ContainerID)
	if err != nil {
		return nil, err
	}
	page, err := hf.ReadPageFromFile(id.PageID)
	if err != nil {
		return nil, err
	}
	value, ok := page.GetValue(id.SlotID)
	if !ok {
		return nil, fmt.Errorf("storage: %v: %w", id, ErrSlotNotFound)
	}
	return value, nil
}

// UpdateValue replaces the record at id with newValue, implemented as a
// delete followed by a fresh insert. The returned identifier may differ
// from id.
func (sm *StorageManager) UpdateValue(newValue []byte, id ids.ValueID, tid ids.TransactionID) (ids.ValueID, error) {
	if err := sm.DeleteValue(id, tid); err != nil {
		return ids.ValueID{}, err
	}
	return sm.InsertValue(id.ContainerID, newValue, tid)
}

// DeleteValue loads the page named by id, removes the slot, and writes
// the page back.
func (sm *StorageManager) DeleteValue(id ids.ValueID, tid ids.TransactionID) error {
	hf, err := sm.heapFile(id.ContainerID)
	if err != nil {
		return err
	}
	page, err := hf.ReadPageFromFile(id.PageID)
	if err != nil {
		return err
	}
	if !page.DeleteValue(id.SlotID) {
		return fmt.Errorf("storage: %v: %w", id, ErrSlotNotFound)
	}
	return hf.WritePageToFile(page)
}

// GetIterator returns an iterator over every live record of cid. It is a
// contract violation (panics) if cid is not registered.
func (sm *StorageManager) GetIterator(cid ids.ContainerID, tid ids.TransactionID, perm ids.Permissions) *HeapFileIterator {
	hf, err := sm.heapFile(cid)
	if err != nil {
		panic(fmt.Sprintf("storage: get_iterator on unregistered container %d", cid))
	}
	it, err := NewHeapFileIterator(cid, tid, hf)
	if err != nil {
		panic(fmt.Sprintf("storage: get_iterator on container %d: %v", cid, err))
	}
	return it
}

// ReadPage returns a single page of cid's heap file, for callers (the
// export snapshot tool) that need whole page images rather than
// individual records.
func (sm *StorageManager) ReadPage(cid ids.ContainerID, pid ids.PageID) (*Page, error) {
	hf, err := sm.heapFile(cid)
	if err != nil {
		return nil, err
	}
	return hf.ReadPageFromFile(pid)
}

// WritePage writes a whole page image into cid's heap file, overwriting
// in place if its id already exists or appending otherwise.
func (sm *StorageManager) WritePage(cid ids.ContainerID, page *Page) error {
	hf, err := sm.heapFile(cid)
	if err != nil {
		return err
	}
	return hf.WritePageToFile(page)
}

// GetNumPages returns the current page count of cid's heap file.
func (sm *StorageManager) GetNumPages(cid ids.ContainerID) (ids.PageID, error) {
	hf, err := sm.heapFile(cid)
	if err != nil {
		return 0, err
	}
	return hf.NumPages()
}

// GetHeapFileReadWriteCount returns the profiling counters of cid's heap
// file.
func (sm *StorageManager) GetHeapFileReadWriteCount(cid ids.ContainerID) (reads, writes int64, err error) {
	hf, err := sm.heapFile(cid)
	if err != nil {
		return 0, 0, err
	}
	return hf.ReadCount(), hf.WriteCount(), nil
}

func (sm *StorageManager) heapFile(cid ids.ContainerID) (*HeapFile, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	hf, ok := sm.containers[cid]
	if !ok {
		return nil, fmt.Errorf("storage: container %d: %w", cid, ErrContainerMissing)
	}
	return hf, nil
}

// Reset wipes the storage directory tree, clears the mapping, and
// recreates the skeleton directories.
func (sm *StorageManager) Reset() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, hf := range sm.containers {
		hf.Close()
	}
	sm.containers = make(map[ids.ContainerID]*HeapFile)

	if err := os.RemoveAll(sm.storagePath); err != nil {
		return fmt.Errorf("storage: reset %s: %w: %v", sm.storagePath, ErrIO, err)
	}
	if err := os.MkdirAll(filepath.Join(sm.storagePath, containersDirName), 0755); err != nil {
		return fmt.Errorf("storage: recreate storage directory %s: %w", sm.storagePath, err)
	}
	logger.Printf("reset storage directory %s", sm.storagePath)
	return nil
}

// Shutdown serializes the container-to-path mapping to
// <storage_path>/serde_containers/all_containers. It is idempotent.
func (sm *StorageManager) Shutdown() error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	registryDir := filepath.Join(sm.storagePath, registryDirName)
	if err := os.MkdirAll(registryDir, 0755); err != nil {
		return fmt.Errorf("storage: create registry directory: %w", err)
	}

	var buf bytes.Buffer
	cids := make([]int, 0, len(sm.containers))
	for cid := range sm.containers {
		cids = append(cids, int(cid))
	}
	sortInts(cids)
	for _, cid := range cids {
		fmt.Fprintf(&buf, "%d=%s\n", cid, sm.containerPath(storageContainerID(cid)))
	}

	registryPath := filepath.Join(registryDir, registryFileName)
	if err := natomic.WriteFile(registryPath, bytes.NewReader(buf.Bytes())); err != nil {
		return fmt.Errorf("storage: write registry %s: %w: %v", registryPath, ErrIO, err)
	}
	logger.Printf("shutdown: persisted registry for %d containers", len(cids))
	return nil
}

// Teardown closes every open heap file and, if the manager is temporary,
// removes the storage directory tree.
func (sm *StorageManager) Teardown() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, hf := range sm.containers {
		hf.Close()
	}

	if sm.isTemp {
		if err := os.RemoveAll(sm.storagePath); err != nil {
			return fmt.Errorf("storage: teardown %s: %w: %v", sm.storagePath, ErrIO, err)
		}
	}
	return nil
}

func storageContainerID(i int) ids.ContainerID { return ids.ContainerID(i) }

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// readRegistry parses the simple "container_id=path" key-value document
// written by Shutdown. A missing file is not an error: it means no
// registry has been persisted yet.
func readRegistry(path string) (map[ids.ContainerID]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: open registry %s: %w: %v", path, ErrIO, err)
	}
	defer file.Close()

	entries := make(map[ids.ContainerID]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		cid, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		entries[ids.ContainerID(cid)] = parts[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("storage: scan registry %s: %w: %v", path, ErrIO, err)
	}
	return entries, nil
}
