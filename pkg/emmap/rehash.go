package emmap

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/marmos91/emstore/internal/logger"
	"github.com/marmos91/emstore/pkg/mapped"
)

// rehash doubles the table by building a side index file and swapping it
// into place with renames. Stored hashes are reused verbatim, so keys are
// never decoded, and the key/value chunk offsets carry over unchanged.
//
// The commit point is the rename of the side file over index.bin; until
// then the old index remains authoritative, and a failure restores it.
func (m *Map) rehash() error {
	start := time.Now()

	mask, err := m.mask()
	if err != nil {
		return err
	}
	slots := mask + 1

	newSlots := slots << 1
	if newSlots < slots || indexSize(newSlots) < indexSize(slots) {
		return mapped.ErrOverflow
	}
	newMask := newSlots - 1

	logger.Debug("map resizing",
		logger.KeyDir, m.dir,
		logger.KeyMask, newMask)

	side, err := mapped.Create(filepath.Join(m.dir, "index.bin.1"), indexSize(newSlots))
	if err != nil {
		return err
	}
	if err := writeIndexHeader(side, 0, newMask); err != nil {
		side.Unlink()
		side.Close()
		return err
	}

	// Reinsert every occupied slot into the larger table.
	var newUsed uint64
	for i := uint64(0); i < slots; i++ {
		ent, err := readEntry(m.index, i)
		if err != nil {
			side.Unlink()
			side.Close()
			return err
		}
		if ent.isFree() {
			continue
		}

		j := uint64(ent.hash) & newMask
		dst, err := readEntry(side, j)
		if err != nil {
			side.Unlink()
			side.Close()
			return err
		}
		for perturb := uint64(ent.hash); !dst.isFree(); perturb >>= perturbShift {
			j = (j*5 + perturb + 1) & newMask
			dst, err = readEntry(side, j)
			if err != nil {
				side.Unlink()
				side.Close()
				return err
			}
		}

		if err := writeEntry(side, j, ent); err != nil {
			side.Unlink()
			side.Close()
			return err
		}
		newUsed++
	}
	if err := side.PutWordAt(offUsed, newUsed); err != nil {
		side.Unlink()
		side.Close()
		return err
	}

	indexPath := filepath.Join(m.dir, "index.bin")

	if err := m.index.Rename(filepath.Join(m.dir, "index.bin.0")); err != nil {
		side.Unlink()
		side.Close()
		return err
	}
	if err := side.Rename(indexPath); err != nil {
		// Put the old index back so the map stays usable.
		if rerr := m.index.Rename(indexPath); rerr != nil {
			return fmt.Errorf("rehash: %w (restore failed: %v)", err, rerr)
		}
		side.Unlink()
		side.Close()
		return err
	}

	m.index.Unlink()
	m.index.Close()
	m.index = side

	if err := m.index.Advise(mapped.AccessRandom); err != nil {
		logger.Debug("madvise failed", logger.KeyFile, m.index.Path(), "error", err)
	}

	logger.Debug("map resize successful",
		logger.KeyDir, m.dir,
		logger.KeyUsed, newUsed,
		logger.KeyMask, newMask,
		logger.KeyElapsed, float64(time.Since(start).Microseconds())/1000.0)

	if m.metrics != nil {
		m.metrics.RecordRehash(time.Since(start), newSlots)
	}
	return nil
}
