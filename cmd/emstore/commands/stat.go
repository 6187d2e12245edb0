package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/marmos91/emstore/pkg/mapped"
)

var statCmd = &cobra.Command{
	Use:   "stat <dir>",
	Short: "Show container header fields and file sizes",
	Long: `Show the header fields and on-disk sizes of a container directory.

The container kind is detected from the files present: a directory with a
keys.bin is a map, one without is a sequence.

Examples:
  emstore stat /var/data/m1`,
	Args: cobra.ExactArgs(1),
	RunE: runStat,
}

func runStat(cmd *cobra.Command, args []string) error {
	dir := args[0]

	kind, err := detectKind(dir)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"FILE", "DISK SIZE", "FIELD", "VALUE"})

	switch kind {
	case kindMap:
		if err := statIndex(table, filepath.Join(dir, "index.bin"), "mask"); err != nil {
			return err
		}
		if err := statDataFile(table, filepath.Join(dir, "keys.bin")); err != nil {
			return err
		}
		if err := statDataFile(table, filepath.Join(dir, "values.bin")); err != nil {
			return err
		}
	case kindSeq:
		if err := statIndex(table, filepath.Join(dir, "index.bin"), "capacity"); err != nil {
			return err
		}
		if err := statDataFile(table, filepath.Join(dir, "values.bin")); err != nil {
			return err
		}
	}

	fmt.Printf("%s: %s container\n", dir, kind)
	table.Render()
	return nil
}

// statIndex appends the index header fields to the table. third names the
// kind-specific third header word.
func statIndex(table *tablewriter.Table, path, third string) error {
	f, err := mapped.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	name := filepath.Base(path)

	magic, err := f.WordAt(0)
	if err != nil {
		return err
	}
	if magic != mapped.Magic {
		return fmt.Errorf("%s: bad magic %#x", path, magic)
	}

	used, err := f.WordAt(mapped.Word)
	if err != nil {
		return err
	}
	thirdVal, err := f.WordAt(2 * mapped.Word)
	if err != nil {
		return err
	}

	table.Append([]string{name, fmt.Sprint(f.Size()), "used", fmt.Sprint(used)})
	table.Append([]string{name, "", third, fmt.Sprint(thirdVal)})
	return nil
}

// statDataFile appends a chunk file's size and chunk count to the table.
func statDataFile(table *tablewriter.Table, path string) error {
	f, err := mapped.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	name := filepath.Base(path)

	magic, err := f.WordAt(0)
	if err != nil {
		return err
	}
	if magic != mapped.Magic {
		return fmt.Errorf("%s: bad magic %#x", path, magic)
	}

	// Walk the chunk headers to count them.
	var chunks uint64
	pos := uint64(mapped.Word)
	for pos < f.EOF() {
		size, err := f.WordAt(pos)
		if err != nil || size < mapped.Word {
			break
		}
		chunks++
		pos += size
	}

	table.Append([]string{name, fmt.Sprint(f.Size()), "chunks", fmt.Sprint(chunks)})
	return nil
}

type containerKind string

const (
	kindMap containerKind = "map"
	kindSeq containerKind = "seq"
)

// detectKind classifies a container directory by the files it holds.
func detectKind(dir string) (containerKind, error) {
	if _, err := os.Stat(filepath.Join(dir, "index.bin")); err != nil {
		return "", fmt.Errorf("%s: not a container directory: %w", dir, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "keys.bin")); err == nil {
		return kindMap, nil
	}
	return kindSeq, nil
}
