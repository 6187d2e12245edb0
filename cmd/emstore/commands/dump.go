package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/emstore/pkg/emmap"
	"github.com/marmos91/emstore/pkg/emseq"
)

var dumpLimit uint64

var dumpCmd = &cobra.Command{
	Use:   "dump <dir>",
	Short: "Print container entries",
	Long: `Print the entries of a container directory, keys and values decoded
with the default byte-vector codec.

Examples:
  # Dump a map
  emstore dump /var/data/m1

  # First ten entries only
  emstore dump /var/data/s1 --limit 10`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().Uint64Var(&dumpLimit, "limit", 0, "stop after this many entries (0 = all)")
}

func runDump(cmd *cobra.Command, args []string) error {
	dir := args[0]

	kind, err := detectKind(dir)
	if err != nil {
		return err
	}

	switch kind {
	case kindMap:
		return dumpMap(dir)
	default:
		return dumpSeq(dir)
	}
}

func dumpMap(dir string) error {
	m, err := emmap.Open(dir, emmap.Options{})
	if err != nil {
		return err
	}
	defer m.Close()

	var n uint64
	it := m.Items()
	for it.Next() {
		fmt.Printf("%s = %s\n", render(it.Key()), render(it.Value()))
		n++
		if dumpLimit > 0 && n >= dumpLimit {
			break
		}
	}
	if err := it.Err(); err != nil {
		return err
	}

	fmt.Printf("%d of %d entries\n", n, m.Len())
	return nil
}

func dumpSeq(dir string) error {
	s, err := emseq.Open(dir, emseq.Options{})
	if err != nil {
		return err
	}
	defer s.Close()

	var n uint64
	it := s.Iter()
	for it.Next() {
		fmt.Printf("[%d] = %s\n", n, render(it.Value()))
		n++
		if dumpLimit > 0 && n >= dumpLimit {
			break
		}
	}
	if err := it.Err(); err != nil {
		return err
	}

	fmt.Printf("%d of %d elements\n", n, s.Len())
	return nil
}

// render formats a decoded value for display.
func render(v any) string {
	switch t := v.(type) {
	case nil:
		return "<nil>"
	case []byte:
		return fmt.Sprintf("%q", t)
	case string:
		return fmt.Sprintf("%q", t)
	default:
		return fmt.Sprint(t)
	}
}
