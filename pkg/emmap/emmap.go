// Package emmap implements a persistent, disk-backed map.
//
// A Map is an open-addressed hash table spread over three memory-mapped
// files inside one directory: index.bin holds the table itself, keys.bin
// and values.bin hold length-prefixed chunks with the encoded keys and
// values. The table uses perturbed probing in the style of CPython's dict
// and doubles via a side index file swapped into place with a rename.
//
// A Map is single-owner: it is not internally synchronized and a directory
// must not be opened by more than one Map (or process) at a time. There is
// no removal operation; slots are only ever written or rewritten.
package emmap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/marmos91/emstore/internal/logger"
	"github.com/marmos91/emstore/pkg/codec"
	"github.com/marmos91/emstore/pkg/mapped"
)

// Options configures a Map. Zero-value fields fall back to byte-vector
// defaults: codec.Bytes for both codecs and codec.XXHasher for hashing.
type Options struct {
	KeyCodec   codec.Codec
	ValueCodec codec.Codec
	Hasher     codec.Hasher

	// Metrics is optional; nil disables collection.
	Metrics Metrics

	// AllocMetrics is attached to the data files' chunk allocators.
	AllocMetrics mapped.Metrics
}

// Map is a persistent external-memory map.
type Map struct {
	dir    string
	index  *mapped.File
	keys   *mapped.File
	values *mapped.File

	keyCodec   codec.Codec
	valueCodec codec.Codec
	hasher     codec.Hasher
	metrics    Metrics
	alloc      mapped.Metrics

	isOpen bool
}

// New returns a closed Map with the given options. Call Open to attach it
// to a directory.
func New(opts Options) *Map {
	m := &Map{
		keyCodec:   opts.KeyCodec,
		valueCodec: opts.ValueCodec,
		hasher:     opts.Hasher,
		metrics:    opts.Metrics,
		alloc:      opts.AllocMetrics,
	}
	if m.keyCodec == nil {
		m.keyCodec = codec.Bytes{}
	}
	if m.valueCodec == nil {
		m.valueCodec = codec.Bytes{}
	}
	if m.hasher == nil {
		m.hasher = codec.XXHasher{}
	}
	return m
}

// Open attaches the map to dir, creating the directory and its files when
// they do not exist yet.
//
// The existence check is racy by design; concurrent opens of the same
// directory are unsupported.
func Open(dir string, opts Options) (*Map, error) {
	m := New(opts)
	if err := m.Open(dir); err != nil {
		return nil, err
	}
	return m, nil
}

// Open attaches a closed map to dir. Opening an already-open map fails with
// ErrAlreadyOpen.
func (m *Map) Open(dir string) error {
	if m.isOpen {
		return ErrAlreadyOpen
	}

	var err error
	if _, serr := os.Stat(dir); serr == nil {
		err = m.openExisting(dir)
	} else {
		err = m.create(dir)
	}
	if err != nil {
		return fmt.Errorf("open map %s: %w", dir, err)
	}

	m.dir = dir
	m.isOpen = true
	if m.metrics != nil {
		m.metrics.RecordOpen("map")
	}
	return nil
}

// create builds a fresh container directory: an index sized for
// initialSlots and header-only data files.
func (m *Map) create(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	index, err := mapped.Create(filepath.Join(dir, "index.bin"), indexSize(initialSlots))
	if err != nil {
		os.Remove(dir)
		return err
	}
	if err := writeIndexHeader(index, 0, initialSlots-1); err != nil {
		index.Unlink()
		index.Close()
		os.Remove(dir)
		return err
	}

	keys, err := createDataFile(filepath.Join(dir, "keys.bin"))
	if err != nil {
		index.Unlink()
		index.Close()
		os.Remove(dir)
		return err
	}

	values, err := createDataFile(filepath.Join(dir, "values.bin"))
	if err != nil {
		keys.Unlink()
		keys.Close()
		index.Unlink()
		index.Close()
		os.Remove(dir)
		return err
	}

	m.index, m.keys, m.values = index, keys, values
	m.attachMetrics()
	return nil
}

// createDataFile creates a chunk file containing only the magic header.
func createDataFile(path string) (*mapped.File, error) {
	f, err := mapped.Create(path, dataInitialSize)
	if err != nil {
		return nil, err
	}
	if err := f.PutWordAt(0, mapped.Magic); err != nil {
		f.Unlink()
		f.Close()
		return nil, err
	}
	return f, nil
}

// writeIndexHeader stores {magic, used, mask} at the start of the index.
func writeIndexHeader(f *mapped.File, used, mask uint64) error {
	if err := f.PutWordAt(offMagic, mapped.Magic); err != nil {
		return err
	}
	if err := f.PutWordAt(offUsed, used); err != nil {
		return err
	}
	return f.PutWordAt(offMask, mask)
}

// openExisting opens and verifies the three container files. Data files
// are positioned at their on-disk EOF so subsequent chunk writes append.
func (m *Map) openExisting(dir string) error {
	index, err := openVerified(filepath.Join(dir, "index.bin"))
	if err != nil {
		return err
	}

	keys, err := openVerified(filepath.Join(dir, "keys.bin"))
	if err != nil {
		index.Close()
		return err
	}

	values, err := openVerified(filepath.Join(dir, "values.bin"))
	if err != nil {
		keys.Close()
		index.Close()
		return err
	}

	// The index is probed, the data files are appended to.
	if err := index.Advise(mapped.AccessRandom); err != nil {
		logger.Debug("madvise failed", logger.KeyFile, index.Path(), "error", err)
	}

	m.index, m.keys, m.values = index, keys, values
	m.attachMetrics()
	return nil
}

// openVerified opens a mapped file, checks its magic word and seeks to the
// on-disk EOF.
func openVerified(path string) (*mapped.File, error) {
	f, err := mapped.Open(path)
	if err != nil {
		return nil, err
	}

	magic, err := f.WordAt(0)
	if err != nil || magic != mapped.Magic {
		f.Close()
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrBadMagic, path)
	}

	if err := f.Seek(int64(f.EOF()), io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (m *Map) attachMetrics() {
	if m.alloc != nil {
		m.keys.SetMetrics(m.alloc)
		m.values.SetMetrics(m.alloc)
	}
}

// Close syncs and closes the container files. The data files are truncated
// to their logical EOF; the index keeps its mapped size, which its header
// fully describes. Close is idempotent.
func (m *Map) Close() error {
	if !m.isOpen {
		return nil
	}
	m.isOpen = false

	var errs []error

	if err := m.index.Sync(0, m.index.Size()); err != nil {
		errs = append(errs, err)
	}
	if err := m.index.Close(); err != nil {
		errs = append(errs, err)
	}

	for _, f := range []*mapped.File{m.keys, m.values} {
		if err := f.Sync(0, f.Size()); err != nil {
			errs = append(errs, err)
		}
		if err := f.Truncate(f.EOF()); err != nil {
			errs = append(errs, err)
		}
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if m.metrics != nil {
		m.metrics.RecordClose("map")
	}
	if len(errs) > 0 {
		return fmt.Errorf("close map %s: %w", m.dir, errors.Join(errs...))
	}
	return nil
}

// Dir returns the directory the map is attached to.
func (m *Map) Dir() string {
	return m.dir
}

// Len returns the number of entries.
func (m *Map) Len() uint64 {
	if !m.isOpen {
		return 0
	}
	used, err := m.index.WordAt(offUsed)
	if err != nil {
		return 0
	}
	return used
}

// mask returns the current table mask (slot count minus one).
func (m *Map) mask() (uint64, error) {
	return m.index.WordAt(offMask)
}

// used returns the current entry count.
func (m *Map) used() (uint64, error) {
	return m.index.WordAt(offUsed)
}
