package emseq

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/marmos91/emstore/internal/logger"
	"github.com/marmos91/emstore/pkg/mapped"
)

// grow doubles the index capacity (zero grows to one) by building a side
// index file and swapping it into place with renames. The existing body is
// copied verbatim; value offsets do not change.
//
// The commit point is the rename of the side file over index.bin; until
// then the old index remains authoritative, and a failure restores it.
func (s *Seq) grow() error {
	start := time.Now()

	used, err := s.used()
	if err != nil {
		return err
	}
	capacity, err := s.capacity()
	if err != nil {
		return err
	}

	newCapacity := uint64(1)
	if capacity > 0 {
		newCapacity = capacity << 1
	}
	if newCapacity < capacity || indexSize(newCapacity) < newCapacity {
		return mapped.ErrOverflow
	}

	logger.Debug("sequence resizing",
		logger.KeyDir, s.dir,
		logger.KeyCapacity, newCapacity)

	side, err := mapped.Create(filepath.Join(s.dir, "index.bin.1"), indexSize(newCapacity))
	if err != nil {
		return err
	}

	// Carry the old body over: header plus one word per existing slot.
	body := make([]byte, indexSize(capacity))
	if err := s.index.ReadAt(body, 0); err != nil {
		side.Unlink()
		side.Close()
		return err
	}
	if err := side.WriteAt(body, 0); err != nil {
		side.Unlink()
		side.Close()
		return err
	}
	if err := writeIndexHeader(side, used, newCapacity); err != nil {
		side.Unlink()
		side.Close()
		return err
	}

	indexPath := filepath.Join(s.dir, "index.bin")

	if err := s.index.Rename(filepath.Join(s.dir, "index.bin.0")); err != nil {
		side.Unlink()
		side.Close()
		return err
	}
	if err := side.Rename(indexPath); err != nil {
		// Put the old index back so the sequence stays usable.
		if rerr := s.index.Rename(indexPath); rerr != nil {
			return fmt.Errorf("grow: %w (restore failed: %v)", err, rerr)
		}
		side.Unlink()
		side.Close()
		return err
	}

	s.index.Unlink()
	s.index.Close()
	s.index = side

	logger.Debug("sequence resize successful",
		logger.KeyDir, s.dir,
		logger.KeyUsed, used,
		logger.KeyCapacity, newCapacity,
		logger.KeyElapsed, float64(time.Since(start).Microseconds())/1000.0)

	if s.metrics != nil {
		s.metrics.RecordResize(time.Since(start), newCapacity)
	}
	return nil
}
