// Package export snapshots a container's heap file to a single-file,
// compressed, integrity-checked manifest, and restores one back into a
// fresh heap file.
package export

import (
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/mnohosten/heapstore/pkg/compression"
	"github.com/mnohosten/heapstore/pkg/ids"
	"github.com/mnohosten/heapstore/pkg/storage"
)

// Manifest is the on-disk snapshot format, self-contained in one file.
// Compressed page bytes are embedded inline as base64 by encoding/json.
type Manifest struct {
	Version     string          `json:"version"`
	ContainerID ids.ContainerID `json:"container_id"`
	PageCount   int             `json:"page_count"`
	Algorithm   string          `json:"algorithm"`
	Pages       []PageEntry     `json:"pages"`
}

// PageEntry is one compressed, digest-checked page image.
type PageEntry struct {
	Index      int    `json:"index"`
	Digest     []byte `json:"digest"`
	Compressed []byte `json:"compressed"`
}

// Snapshot reads every page of containerID's heap file, compresses each
// page image with algo via a compression.CompressedPage, computes a
// blake2b digest of the plaintext image for restore-time integrity
// checking, and JSON-encodes the result to w.
func Snapshot(sm *storage.StorageManager, containerID ids.ContainerID, algo compression.Algorithm, w io.Writer) error {
	numPages, err := sm.GetNumPages(containerID)
	if err != nil {
		return fmt.Errorf("export: snapshot container %d: %w", containerID, err)
	}

	cp, err := compression.NewCompressedPage(&compression.Config{Algorithm: algo, Level: 3})
	if err != nil {
		return fmt.Errorf("export: build page compressor: %w", err)
	}
	defer cp.Close()

	manifest := Manifest{
		Version:     "1.0",
		ContainerID: containerID,
		PageCount:   int(numPages),
		Algorithm:   algo.String(),
		Pages:       make([]PageEntry, 0, numPages),
	}

	for pid := ids.PageID(0); pid < numPages; pid++ {
		page, err := sm.ReadPage(containerID, pid)
		if err != nil {
			return fmt.Errorf("export: read page %d: %w", pid, err)
		}

		digest := blake2b.Sum256(page.GetBytes())

		compressed, err := cp.CompressPage(page)
		if err != nil {
			return fmt.Errorf("export: compress page %d: %w", pid, err)
		}

		manifest.Pages = append(manifest.Pages, PageEntry{
			Index:      int(pid),
			Digest:     digest[:],
			Compressed: compressed,
		})
	}

	encoder := json.NewEncoder(w)
	if err := encoder.Encode(&manifest); err != nil {
		return fmt.Errorf("export: encode manifest: %w", err)
	}
	return nil
}

// Restore decodes a manifest from r, decompresses and digest-checks each
// page, and writes it into a fresh heap file registered as containerID
// in sm. containerID must already be an empty, freshly created container.
func Restore(sm *storage.StorageManager, containerID ids.ContainerID, r io.Reader) error {
	var manifest Manifest
	if err := json.NewDecoder(r).Decode(&manifest); err != nil {
		return fmt.Errorf("export: decode manifest: %w", err)
	}

	algo, err := ParseAlgorithm(manifest.Algorithm)
	if err != nil {
		return fmt.Errorf("export: restore container %d: %w", containerID, err)
	}

	cp, err := compression.NewCompressedPage(&compression.Config{Algorithm: algo, Level: 3})
	if err != nil {
		return fmt.Errorf("export: build page compressor: %w", err)
	}
	defer cp.Close()

	for _, entry := range manifest.Pages {
		page, err := cp.DecompressPage(entry.Compressed)
		if err != nil {
			return fmt.Errorf("export: decompress page %d: %w", entry.Index, err)
		}

		digest := blake2b.Sum256(page.GetBytes())
		if string(digest[:]) != string(entry.Digest) {
			return fmt.Errorf("export: page %d failed integrity check", entry.Index)
		}

		if err := sm.WritePage(containerID, page); err != nil {
			return fmt.Errorf("export: write page %d: %w", entry.Index, err)
		}
	}
	return nil
}

// ParseAlgorithm parses the string form of a compression.Algorithm as
// used in a manifest's Algorithm field and in config files.
func ParseAlgorithm(name string) (compression.Algorithm, error) {
	switch name {
	case "none":
		return compression.AlgorithmNone, nil
	case "snappy":
		return compression.AlgorithmSnappy, nil
	case "zstd":
		return compression.AlgorithmZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression algorithm %q", name)
	}
}
