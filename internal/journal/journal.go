// Package journal records the chain of committed snapshots during a
// reduction run: an in-memory size-over-time series for reporting, and
// optionally the LZ4-compressed body of every committed candidate for
// post-mortem inspection.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/prunefang/internal/syntree"
)

// snapshotFilePattern names persisted snapshot bodies by version.
const snapshotFilePattern = "snapshot-%06d.src.lz4"

// indexFileName is the per-run sample index written on Close.
const indexFileName = "journal.json"

// snapshotDirPerm is the permission for a created journal directory.
const snapshotDirPerm = 0o755

// snapshotFilePerm is the permission for persisted snapshot files.
const snapshotFilePerm = 0o644

// lengthHeaderSize prefixes each compressed snapshot with its original
// size, needed to size the decompression buffer.
const lengthHeaderSize = 8

// ErrCorruptSnapshot indicates a persisted snapshot that cannot be decoded.
var ErrCorruptSnapshot = errors.New("journal: corrupt snapshot file")

// Sample is one committed snapshot observation.
type Sample struct {
	ElapsedMS int64  `json:"elapsed_ms"`
	Weight    int    `json:"weight"`
	Version   uint64 `json:"version"`
}

// Journal accumulates commit samples. Safe for concurrent use; the engine
// invokes RecordCommit from every worker goroutine.
type Journal struct {
	mu      sync.Mutex
	start   time.Time
	samples []Sample
	dir     string
	log     *slog.Logger
}

// New creates a journal. When dir is non-empty it is created and every
// committed snapshot body is persisted there; otherwise only the in-memory
// series is kept.
func New(dir string, log *slog.Logger) (*Journal, error) {
	if log == nil {
		log = slog.Default()
	}

	if dir != "" {
		err := os.MkdirAll(dir, snapshotDirPerm)
		if err != nil {
			return nil, fmt.Errorf("journal: create dir: %w", err)
		}
	}

	return &Journal{
		start: time.Now(),
		dir:   dir,
		log:   log,
	}, nil
}

// RecordCommit appends a sample for a committed snapshot. Snapshot body
// persistence failures are logged, not fatal: the journal is diagnostic,
// the reduction result does not depend on it.
func (j *Journal) RecordCommit(tree *syntree.Tree) {
	sample := Sample{
		ElapsedMS: time.Since(j.start).Milliseconds(),
		Weight:    tree.Weight(),
		Version:   tree.Version(),
	}

	j.mu.Lock()
	j.samples = append(j.samples, sample)
	j.mu.Unlock()

	if j.dir == "" {
		return
	}

	err := writeSnapshot(filepath.Join(j.dir, fmt.Sprintf(snapshotFilePattern, tree.Version())), tree.Render())
	if err != nil {
		j.log.Warn("failed to persist snapshot", "version", tree.Version(), "error", err)
	}
}

// Samples returns a copy of the recorded series in commit order.
func (j *Journal) Samples() []Sample {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]Sample, len(j.samples))
	copy(out, j.samples)

	return out
}

// Close writes the sample index when the journal is backed by a directory.
func (j *Journal) Close() error {
	if j.dir == "" {
		return nil
	}

	data, err := json.MarshalIndent(j.Samples(), "", "  ")
	if err != nil {
		return fmt.Errorf("journal: encode index: %w", err)
	}

	writeErr := os.WriteFile(filepath.Join(j.dir, indexFileName), data, snapshotFilePerm)
	if writeErr != nil {
		return fmt.Errorf("journal: write index: %w", writeErr)
	}

	return nil
}

// writeSnapshot persists text LZ4 block-compressed, prefixed with the
// original length.
func writeSnapshot(path string, text []byte) error {
	buf := make([]byte, lengthHeaderSize+lz4.CompressBlockBound(len(text)))
	binary.LittleEndian.PutUint64(buf, uint64(len(text)))

	written, err := lz4.CompressBlock(text, buf[lengthHeaderSize:], nil)
	if err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}

	if written == 0 {
		// Incompressible input; store raw with a zero length marker.
		raw := make([]byte, lengthHeaderSize+len(text))
		binary.LittleEndian.PutUint64(raw, 0)
		copy(raw[lengthHeaderSize:], text)

		return os.WriteFile(path, raw, snapshotFilePerm)
	}

	return os.WriteFile(path, buf[:lengthHeaderSize+written], snapshotFilePerm)
}

// ReadSnapshot loads and decompresses a snapshot persisted by a journal.
func ReadSnapshot(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("journal: read snapshot: %w", err)
	}

	if len(data) < lengthHeaderSize {
		return nil, ErrCorruptSnapshot
	}

	size := binary.LittleEndian.Uint64(data)
	if size == 0 {
		return data[lengthHeaderSize:], nil
	}

	out := make([]byte, size)

	n, err := lz4.UncompressBlock(data[lengthHeaderSize:], out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	return out[:n], nil
}
