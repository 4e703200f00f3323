// Package compression compresses whole page images for container
// snapshots. It is deliberately narrow: the export tool only ever needs
// to shrink a 4KB storage.Page image and recover it byte-for-byte later,
// so the engine is built around storage.Page from the start rather than
// around generic byte slices.
package compression

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/mnohosten/heapstore/pkg/ids"
	"github.com/mnohosten/heapstore/pkg/storage"
)

// Algorithm selects which codec compresses a page image. Only the two
// the export path actually reaches in practice are backed by a real
// compressor; AlgorithmNone exists for small test fixtures and diagnostic
// dumps where compression would only add overhead.
type Algorithm int

const (
	AlgorithmNone Algorithm = iota
	AlgorithmSnappy
	AlgorithmZstd
)

// String returns the string representation of the algorithm, the same
// spelling ParseAlgorithm and config files accept.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmNone:
		return "none"
	case AlgorithmSnappy:
		return "snappy"
	case AlgorithmZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// Config selects an algorithm and, for Zstd, its encoder level.
type Config struct {
	Algorithm Algorithm
	Level     int
}

// DefaultConfig returns the engine's built-in default: Zstd at a
// balanced level.
func DefaultConfig() *Config {
	return &Config{Algorithm: AlgorithmZstd, Level: 3}
}

// CompressedPageHeaderSize is the size of the compressed page header:
// [1-byte algorithm][4-byte original size][4-byte compressed size].
const CompressedPageHeaderSize = 9

// CompressedPage compresses and decompresses whole page images, the unit
// the export snapshot tool writes one per page entry.
type CompressedPage struct {
	config  *Config
	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder
}

// NewCompressedPage builds a compressed page handler for the given
// compression config. A nil config selects DefaultConfig.
func NewCompressedPage(config *Config) (*CompressedPage, error) {
	if config == nil {
		config = DefaultConfig()
	}

	cp := &CompressedPage{config: config}

	if config.Algorithm == AlgorithmZstd {
		encLevel := zstd.EncoderLevelFromZstd(config.Level)
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
		if err != nil {
			return nil, fmt.Errorf("compression: create zstd encoder: %w", err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("compression: create zstd decoder: %w", err)
		}
		cp.zstdEnc = enc
		cp.zstdDec = dec
	}

	return cp, nil
}

func (cp *CompressedPage) compress(data []byte) ([]byte, error) {
	switch cp.config.Algorithm {
	case AlgorithmNone:
		return data, nil
	case AlgorithmSnappy:
		return snappy.Encode(nil, data), nil
	case AlgorithmZstd:
		return cp.zstdEnc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("compression: unsupported algorithm: %v", cp.config.Algorithm)
	}
}

func (cp *CompressedPage) decompress(data []byte) ([]byte, error) {
	switch cp.config.Algorithm {
	case AlgorithmNone:
		return data, nil
	case AlgorithmSnappy:
		decoded, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("compression: decode snappy: %w", err)
		}
		return decoded, nil
	case AlgorithmZstd:
		decoded, err := cp.zstdDec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("compression: decode zstd: %w", err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("compression: unsupported algorithm: %v", cp.config.Algorithm)
	}
}

// CompressPage compresses a page's on-disk image.
// Returns [header][compressed data].
func (cp *CompressedPage) CompressPage(page *storage.Page) ([]byte, error) {
	pageData := page.GetBytes()

	compressed, err := cp.compress(pageData)
	if err != nil {
		return nil, fmt.Errorf("compress page: %w", err)
	}

	result := make([]byte, CompressedPageHeaderSize+len(compressed))
	result[0] = byte(cp.config.Algorithm)
	binary.LittleEndian.PutUint32(result[1:5], uint32(len(pageData)))
	binary.LittleEndian.PutUint32(result[5:9], uint32(len(compressed)))
	copy(result[CompressedPageHeaderSize:], compressed)

	return result, nil
}

// DecompressPage reverses CompressPage and reconstructs the page.
func (cp *CompressedPage) DecompressPage(data []byte) (*storage.Page, error) {
	if len(data) < CompressedPageHeaderSize {
		return nil, fmt.Errorf("invalid compressed page data: too short")
	}

	algorithm := Algorithm(data[0])
	originalSize := binary.LittleEndian.Uint32(data[1:5])
	compressedSize := binary.LittleEndian.Uint32(data[5:9])

	if algorithm != cp.config.Algorithm {
		return nil, fmt.Errorf("algorithm mismatch: expected %v, got %v",
			cp.config.Algorithm, algorithm)
	}
	if len(data)-CompressedPageHeaderSize != int(compressedSize) {
		return nil, fmt.Errorf("compressed size mismatch: expected %d, got %d",
			compressedSize, len(data)-CompressedPageHeaderSize)
	}

	decompressed, err := cp.decompress(data[CompressedPageHeaderSize:])
	if err != nil {
		return nil, fmt.Errorf("decompress page: %w", err)
	}
	if len(decompressed) != int(originalSize) {
		return nil, fmt.Errorf("decompressed size mismatch: expected %d, got %d",
			originalSize, len(decompressed))
	}

	return storage.FromBytes(decompressed)
}

// Close releases resources held by the underlying codec.
func (cp *CompressedPage) Close() error {
	if cp.zstdEnc != nil {
		cp.zstdEnc.Close()
	}
	if cp.zstdDec != nil {
		cp.zstdDec.Close()
	}
	return nil
}

// PageCompressionStats holds compression statistics for a single page.
type PageCompressionStats struct {
	PageID         ids.PageID
	OriginalSize   int
	CompressedSize int
	Ratio          float64
	SpaceSavings   float64
	Algorithm      string
}

// GetPageCompressionStats computes compression statistics for page
// without mutating it.
func (cp *CompressedPage) GetPageCompressionStats(page *storage.Page) (*PageCompressionStats, error) {
	pageData := page.GetBytes()

	compressed, err := cp.compress(pageData)
	if err != nil {
		return nil, fmt.Errorf("compress page: %w", err)
	}

	originalSize := len(pageData)
	compressedSize := len(compressed)

	return &PageCompressionStats{
		PageID:         page.ID(),
		OriginalSize:   originalSize,
		CompressedSize: compressedSize,
		Ratio:          compressionRatio(originalSize, compressedSize),
		SpaceSavings:   spaceSavings(originalSize, compressedSize),
		Algorithm:      cp.config.Algorithm.String(),
	}, nil
}

func compressionRatio(originalSize, compressedSize int) float64 {
	if originalSize == 0 {
		return 0
	}
	return float64(compressedSize) / float64(originalSize)
}

func spaceSavings(originalSize, compressedSize int) float64 {
	if originalSize == 0 {
		return 0
	}
	return (1.0 - compressionRatio(originalSize, compressedSize)) * 100
}
