package emseq

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/emstore/pkg/mapped"
)

func openSeq(t *testing.T, dir string) *Seq {
	t.Helper()
	s, err := Open(dir, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSeqAppendAndGet(t *testing.T) {
	s := openSeq(t, filepath.Join(t.TempDir(), "s"))

	const n = 10
	for i := 0; i < n; i++ {
		require.NoError(t, s.Append([]byte(fmt.Sprintf("v-%d", i))))
	}

	assert.Equal(t, uint64(n), s.Len())
	for i := 0; i < n; i++ {
		v, err := s.Get(int64(i))
		require.NoError(t, err)
		assert.Equal(t, []byte(fmt.Sprintf("v-%d", i)), v)
	}
}

func TestSeqGeometricGrowth(t *testing.T) {
	s := openSeq(t, filepath.Join(t.TempDir(), "s1"))

	want := []uint64{1, 2, 4, 4, 8}
	for i, expected := range want {
		require.NoError(t, s.Append([]byte("1")))

		capacity, err := s.capacity()
		require.NoError(t, err)
		assert.Equal(t, expected, capacity, "capacity after append %d", i+1)
	}
}

func TestSeqNegativeIndexSet(t *testing.T) {
	s := openSeq(t, filepath.Join(t.TempDir(), "s2"))

	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, s.Append([]byte(v)))
	}

	require.NoError(t, s.Set(-1, []byte("C")))
	v, err := s.Get(2)
	require.NoError(t, err)
	assert.Equal(t, []byte("C"), v)

	// Negative indices wrap exactly once.
	assert.ErrorIs(t, s.Set(-4, []byte("X")), ErrIndexOutOfRange)
}

func TestSeqIndexBounds(t *testing.T) {
	s := openSeq(t, filepath.Join(t.TempDir(), "s"))

	_, err := s.Get(0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	require.NoError(t, s.Append([]byte("x")))

	_, err = s.Get(1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = s.Get(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	assert.ErrorIs(t, s.Set(1, []byte("y")), ErrIndexOutOfRange)
}

func TestSeqUnassignedSlotReadsNil(t *testing.T) {
	s := openSeq(t, filepath.Join(t.TempDir(), "s"))

	require.NoError(t, s.Append([]byte("x")))
	require.NoError(t, s.writeSlot(0, 0))

	v, err := s.Get(0)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestSeqSetFreesOldValue(t *testing.T) {
	s := openSeq(t, filepath.Join(t.TempDir(), "s"))

	require.NoError(t, s.Append([]byte("aaaa")))
	require.NoError(t, s.Set(0, []byte("bbbb")))

	assert.Equal(t, 1, s.values.Holes())

	// The freed chunk is reused by the next same-size write.
	require.NoError(t, s.Set(0, []byte("cccc")))
	assert.Equal(t, 1, s.values.Holes())
}

func TestSeqAlreadyOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "s")

	s := openSeq(t, dir)
	assert.ErrorIs(t, s.Open(dir), ErrAlreadyOpen)
}

func TestSeqCloseIdempotent(t *testing.T) {
	s := openSeq(t, filepath.Join(t.TempDir(), "s"))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestSeqIterator(t *testing.T) {
	s := openSeq(t, filepath.Join(t.TempDir(), "s"))

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append([]byte(fmt.Sprintf("v-%d", i))))
	}

	var got []string
	it := s.Iter()
	for it.Next() {
		got = append(got, string(it.Value().([]byte)))
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"v-0", "v-1", "v-2", "v-3", "v-4"}, got)
}

func TestSeqPersistence(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "s")
	const n = 50

	s := openSeq(t, dir)
	for i := 0; i < n; i++ {
		require.NoError(t, s.Append([]byte(fmt.Sprintf("v-%d", i))))
	}
	require.NoError(t, s.Close())

	s = openSeq(t, dir)
	assert.Equal(t, uint64(n), s.Len())
	for i := 0; i < n; i++ {
		v, err := s.Get(int64(i))
		require.NoError(t, err)
		assert.Equal(t, []byte(fmt.Sprintf("v-%d", i)), v)
	}

	// The swap files never outlive a successful resize.
	assert.NoFileExists(t, filepath.Join(dir, "index.bin.0"))
	assert.NoFileExists(t, filepath.Join(dir, "index.bin.1"))
}

func TestSeqReopenPreservesEOF(t *testing.T) {
	if testing.Short() {
		t.Skip("writes ~6 MiB of values")
	}

	dir := filepath.Join(t.TempDir(), "v1")
	const n = 100

	big := make([]byte, 64*1024)
	for i := range big {
		big[i] = byte(i)
	}

	s := openSeq(t, dir)
	for i := 0; i < n; i++ {
		require.NoError(t, s.Append(big))
	}
	require.NoError(t, s.Close())

	// Every value encodes to 64 KiB plus a 3-byte length prefix; the
	// file holds the magic word plus n chunks of HoleSize(payload).
	payload := uint64(len(big) + 3)
	st, err := os.Stat(filepath.Join(dir, "values.bin"))
	require.NoError(t, err)
	assert.Equal(t, int64(mapped.Word+n*mapped.HoleSize(payload)), st.Size())

	s = openSeq(t, dir)
	require.NoError(t, s.Append(big))
	assert.Equal(t, uint64(n+1), s.Len())

	// The new chunk went past the old EOF; earlier values are intact.
	for _, i := range []int64{0, 42, 99, 100} {
		v, err := s.Get(i)
		require.NoError(t, err)
		assert.Equal(t, big, v)
	}
}
