package mapped

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignAndHoleSize(t *testing.T) {
	cases := []struct {
		n    uint64
		al   uint64
		hole uint64
	}{
		{0, 0, 8},
		{1, 8, 16},
		{7, 8, 16},
		{8, 8, 16},
		{9, 16, 24},
		{65536, 65536, 65544},
	}
	for _, c := range cases {
		assert.Equal(t, c.al, Align(c.n), "Align(%d)", c.n)
		assert.Equal(t, c.hole, HoleSize(c.n), "HoleSize(%d)", c.n)
	}
}

func newAllocFile(t *testing.T) *File {
	t.Helper()
	f, err := Create(filepath.Join(t.TempDir(), "values.bin"), 256)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	// Reserve a header word like the container files do.
	require.NoError(t, f.PutWordAt(0, Magic))
	return f
}

func TestAllocateChunk(t *testing.T) {
	t.Run("AppendsAfterEOF", func(t *testing.T) {
		f := newAllocFile(t)

		pos, err := f.AllocateChunk(10)
		require.NoError(t, err)

		// First chunk sits right after the header word.
		assert.Equal(t, uint64(Word+Word), pos)

		// Its size prefix records the full rounded footprint.
		size, err := f.WordAt(pos - Word)
		require.NoError(t, err)
		assert.Equal(t, HoleSize(10), size)

		assert.Equal(t, uint64(Word)+HoleSize(10), f.EOF())
	})

	t.Run("SecondChunkFollowsFirst", func(t *testing.T) {
		f := newAllocFile(t)

		p1, err := f.AllocateChunk(8)
		require.NoError(t, err)
		p2, err := f.AllocateChunk(8)
		require.NoError(t, err)

		assert.Equal(t, p1+HoleSize(8), p2)
	})

	t.Run("FreeThenExactReuse", func(t *testing.T) {
		f := newAllocFile(t)

		p1, err := f.AllocateChunk(24)
		require.NoError(t, err)
		_, err = f.AllocateChunk(24)
		require.NoError(t, err)

		f.FreeChunk(p1)
		assert.Equal(t, 1, f.Holes())

		p3, err := f.AllocateChunk(24)
		require.NoError(t, err)
		assert.Equal(t, p1, p3)
		assert.Equal(t, 0, f.Holes())
	})

	t.Run("BestFitTakesSmallestLargeEnough", func(t *testing.T) {
		f := newAllocFile(t)

		small, err := f.AllocateChunk(16)
		require.NoError(t, err)
		large, err := f.AllocateChunk(64)
		require.NoError(t, err)
		medium, err := f.AllocateChunk(32)
		require.NoError(t, err)

		f.FreeChunk(small)
		f.FreeChunk(large)
		f.FreeChunk(medium)
		require.Equal(t, 3, f.Holes())

		// A 24-byte request fits none exactly; the 32-byte hole wins.
		p, err := f.AllocateChunk(24)
		require.NoError(t, err)
		assert.Equal(t, medium, p)
		assert.Equal(t, 2, f.Holes())
	})

	t.Run("AppendZeroFillsPayload", func(t *testing.T) {
		f := newAllocFile(t)

		pos, err := f.AllocateChunk(16)
		require.NoError(t, err)

		buf := make([]byte, 16)
		require.NoError(t, f.ReadAt(buf, pos))
		for _, b := range buf {
			assert.Zero(t, b)
		}
	})
}

func TestFreeChunk(t *testing.T) {
	t.Run("IgnoresBogusPositions", func(t *testing.T) {
		f := newAllocFile(t)

		f.FreeChunk(0)
		f.FreeChunk(4)
		f.FreeChunk(1 << 40)
		assert.Equal(t, 0, f.Holes())
	})

	t.Run("FreeListNotPersisted", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "values.bin")

		f, err := Create(path, 256)
		require.NoError(t, err)
		require.NoError(t, f.PutWordAt(0, Magic))

		pos, err := f.AllocateChunk(16)
		require.NoError(t, err)
		f.FreeChunk(pos)
		require.Equal(t, 1, f.Holes())
		require.NoError(t, f.Close())

		f, err = Open(path)
		require.NoError(t, err)
		defer f.Close()

		// Holes are an in-memory accelerator only.
		assert.Equal(t, 0, f.Holes())
	})
}

func TestWriteReadChunk(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		f := newAllocFile(t)

		pos, err := f.WriteChunk([]byte("payload"))
		require.NoError(t, err)

		got, err := f.ReadChunk(pos)
		require.NoError(t, err)

		// The chunk payload is padded to the word size.
		assert.Equal(t, Align(7), uint64(len(got)))
		assert.Equal(t, []byte("payload"), got[:7])
	})

	t.Run("ChunkSizeMatchesFootprint", func(t *testing.T) {
		f := newAllocFile(t)

		pos, err := f.WriteChunk(make([]byte, 100))
		require.NoError(t, err)

		size, err := f.ChunkSize(pos)
		require.NoError(t, err)
		assert.Equal(t, HoleSize(100)-Word, size)
	})
}
