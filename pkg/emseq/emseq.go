// Package emseq implements a persistent, disk-backed sequence.
//
// A Seq is a dense, append-oriented array spread over two memory-mapped
// files inside one directory: index.bin holds one value offset per slot,
// values.bin holds length-prefixed chunks with the encoded values. Capacity
// grows geometrically via a side index file swapped into place with a
// rename, the same pattern pkg/emmap uses for rehashing.
//
// A Seq is single-owner: it is not internally synchronized and a directory
// must not be opened by more than one Seq (or process) at a time.
package emseq

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/marmos91/emstore/internal/logger"
	"github.com/marmos91/emstore/pkg/codec"
	"github.com/marmos91/emstore/pkg/mapped"
)

const (
	// index.bin layout: {magic, used, capacity} header followed by one
	// {value_pos} word per slot. A zero value_pos marks an unassigned
	// slot, read back as nil.
	hdrSize = 3 * mapped.Word
	entSize = mapped.Word

	offMagic    = 0
	offUsed     = 1 * mapped.Word
	offCapacity = 2 * mapped.Word
)

// indexSize returns the byte size of an index file with n slots.
func indexSize(n uint64) uint64 {
	return hdrSize + n*entSize
}

// entryOffset returns the file offset of slot i.
func entryOffset(i uint64) uint64 {
	return hdrSize + i*entSize
}

// Options configures a Seq. A nil Codec falls back to codec.Bytes.
type Options struct {
	Codec codec.Codec

	// Metrics is optional; nil disables collection.
	Metrics Metrics

	// AllocMetrics is attached to the values file's chunk allocator.
	AllocMetrics mapped.Metrics
}

// Seq is a persistent external-memory sequence.
type Seq struct {
	dir    string
	index  *mapped.File
	values *mapped.File

	codec   codec.Codec
	metrics Metrics
	alloc   mapped.Metrics

	isOpen bool
}

// New returns a closed Seq with the given options. Call Open to attach it
// to a directory.
func New(opts Options) *Seq {
	s := &Seq{
		codec:   opts.Codec,
		metrics: opts.Metrics,
		alloc:   opts.AllocMetrics,
	}
	if s.codec == nil {
		s.codec = codec.Bytes{}
	}
	return s
}

// Open attaches the sequence to dir, creating the directory and its files
// when they do not exist yet.
func Open(dir string, opts Options) (*Seq, error) {
	s := New(opts)
	if err := s.Open(dir); err != nil {
		return nil, err
	}
	return s, nil
}

// Open attaches a closed sequence to dir. Opening an already-open sequence
// fails with ErrAlreadyOpen.
//
// The existence check is racy by design; concurrent opens of the same
// directory are unsupported.
func (s *Seq) Open(dir string) error {
	if s.isOpen {
		return ErrAlreadyOpen
	}

	var err error
	if _, serr := os.Stat(dir); serr == nil {
		err = s.openExisting(dir)
	} else {
		err = s.create(dir)
	}
	if err != nil {
		return fmt.Errorf("open sequence %s: %w", dir, err)
	}

	s.dir = dir
	s.isOpen = true
	if s.metrics != nil {
		s.metrics.RecordOpen("seq")
	}
	return nil
}

// create builds a fresh container directory. Both files start header-only:
// the index has zero capacity and grows on the first append.
func (s *Seq) create(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	index, err := mapped.Create(filepath.Join(dir, "index.bin"), indexSize(0))
	if err != nil {
		os.Remove(dir)
		return err
	}
	if err := writeIndexHeader(index, 0, 0); err != nil {
		index.Unlink()
		index.Close()
		os.Remove(dir)
		return err
	}

	values, err := mapped.Create(filepath.Join(dir, "values.bin"), hdrSize)
	if err != nil {
		index.Unlink()
		index.Close()
		os.Remove(dir)
		return err
	}
	if err := values.PutWordAt(0, mapped.Magic); err != nil {
		values.Unlink()
		values.Close()
		index.Unlink()
		index.Close()
		os.Remove(dir)
		return err
	}

	s.index, s.values = index, values
	s.attachMetrics()
	return nil
}

// writeIndexHeader stores {magic, used, capacity} at the start of the index.
func writeIndexHeader(f *mapped.File, used, capacity uint64) error {
	if err := f.PutWordAt(offMagic, mapped.Magic); err != nil {
		return err
	}
	if err := f.PutWordAt(offUsed, used); err != nil {
		return err
	}
	return f.PutWordAt(offCapacity, capacity)
}

// openExisting opens and verifies both container files. The values file is
// positioned at its on-disk EOF so subsequent chunk writes append.
func (s *Seq) openExisting(dir string) error {
	index, err := openVerified(filepath.Join(dir, "index.bin"))
	if err != nil {
		return err
	}

	values, err := openVerified(filepath.Join(dir, "values.bin"))
	if err != nil {
		index.Close()
		return err
	}

	// The index is walked front to back.
	if err := index.Advise(mapped.AccessSequential); err != nil {
		logger.Debug("madvise failed", logger.KeyFile, index.Path(), "error", err)
	}

	s.index, s.values = index, values
	s.attachMetrics()
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

func (s *Seq) attachMetrics() {
	if s.alloc != nil {
		s.values.SetMetrics(s.alloc)
	}
}

// Close syncs and closes the container files. The values file is truncated
// to its logical EOF; the index keeps its mapped size. Close is idempotent.
func (s *Seq) Close() error {
	if !s.isOpen {
		return nil
	}
	s.isOpen = false

	var errs []error

	if err := s.index.Sync(0, s.index.Size()); err != nil {
		errs = append(errs, err)
	}
	if err := s.index.Close(); err != nil {
		errs = append(errs, err)
	}

	if err := s.values.Sync(0, s.values.Size()); err != nil {
		errs = append(errs, err)
	}
	if err := s.values.Truncate(s.values.EOF()); err != nil {
		errs = append(errs, err)
	}
	if err := s.values.Close(); err != nil {
		errs = append(errs, err)
	}

	if s.metrics != nil {
		s.metrics.RecordClose("seq")
	}
	if len(errs) > 0 {
		return fmt.Errorf("close sequence %s: %w", s.dir, errors.Join(errs...))
	}
	return nil
}

// Dir returns the directory the sequence is attached to.
func (s *Seq) Dir() string {
	return s.dir
}

// Len returns the number of elements.
func (s *Seq) Len() uint64 {
	if !s.isOpen {
		return 0
	}
	used, err := s.index.WordAt(offUsed)
	if err != nil {
		return 0
	}
	return used
}

func (s *Seq) used() (uint64, error) {
	return s.index.WordAt(offUsed)
}

func (s *Seq) capacity() (uint64, error) {
	return s.index.WordAt(offCapacity)
}

// readSlot returns the value offset stored in slot i.
func (s *Seq) readSlot(i uint64) (uint64, error) {
	return s.index.WordAt(entryOffset(i))
}

// writeSlot stores a value offset into slot i.
func (s *Seq) writeSlot(i, valuePos uint64) error {
	var buf [entSize]byte
	binary.LittleEndian.PutUint64(buf[:], valuePos)
	return s.index.WriteAt(buf[:], entryOffset(i))
}
