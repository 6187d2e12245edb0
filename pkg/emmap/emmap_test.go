package emmap

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/emstore/pkg/mapped"
)

func openMap(t *testing.T, dir string) *Map {
	t.Helper()
	m, err := Open(dir, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestMapSmoke(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "m1")

	m := openMap(t, dir)
	require.NoError(t, m.Set("a", []byte("1")))
	require.NoError(t, m.Set("b", []byte("2")))
	require.NoError(t, m.Set("a", []byte("3")))
	require.NoError(t, m.Close())

	m = openMap(t, dir)
	assert.Equal(t, uint64(2), m.Len())

	v, err := m.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), v)

	v, err = m.Get("b")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v)

	// Two key chunks, three value chunks: the replaced value stays on
	// disk, it is only marked free in the in-memory free list.
	// Encoded "1" is 2 bytes, so every chunk occupies HoleSize(2) bytes.
	assert.Equal(t, 2, countChunks(t, filepath.Join(dir, "keys.bin")))
	assert.Equal(t, 3, countChunks(t, filepath.Join(dir, "values.bin")))
}

// countChunks walks a chunk file's size prefixes up to its on-disk end.
func countChunks(t *testing.T, path string) int {
	t.Helper()

	f, err := mapped.Open(path)
	require.NoError(t, err)
	defer f.Close()

	n := 0
	pos := uint64(mapped.Word)
	for pos < f.EOF() {
		size, err := f.WordAt(pos)
		require.NoError(t, err)
		require.GreaterOrEqual(t, size, uint64(mapped.Word))
		n++
		pos += size
	}
	return n
}

func TestMapMissingKey(t *testing.T) {
	m := openMap(t, filepath.Join(t.TempDir(), "m"))

	_, err := m.Get("absent")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMapAlreadyOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "m")

	m := openMap(t, dir)
	err := m.Open(dir)
	assert.ErrorIs(t, err, ErrAlreadyOpen)

	// The failed second open must not disturb on-disk state.
	require.NoError(t, m.Set("k", []byte("v")))
	v, err := m.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}

func TestMapCloseIdempotent(t *testing.T) {
	m := openMap(t, filepath.Join(t.TempDir(), "m"))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestMapUpdateFreesOldValue(t *testing.T) {
	m := openMap(t, filepath.Join(t.TempDir(), "m"))

	require.NoError(t, m.Set("k", []byte("aaaa")))
	require.NoError(t, m.Set("k", []byte("bbbb")))

	assert.Equal(t, uint64(1), m.Len())
	assert.Equal(t, 1, m.values.Holes())

	// The freed chunk is reused by the next same-size write.
	require.NoError(t, m.Set("k", []byte("cccc")))
	assert.Equal(t, 1, m.values.Holes())
}

func TestMapPersistence(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "m")
	const n = 100

	m := openMap(t, dir)
	for i := 0; i < n; i++ {
		require.NoError(t, m.Set(fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("value-%d", i))))
	}
	require.NoError(t, m.Close())

	m = openMap(t, dir)
	assert.Equal(t, uint64(n), m.Len())
	for i := 0; i < n; i++ {
		v, err := m.Get(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		assert.Equal(t, []byte(fmt.Sprintf("value-%d", i)), v)
	}
}

// zeroHasher drives every key through hash zero, which both exercises the
// probe chain and pins down that a zero hash is not mistaken for a free
// slot.
type zeroHasher struct{}

func (zeroHasher) Hash(any) (int64, error) {
	return 0, nil
}

func (zeroHasher) Equal(a, b any) (bool, error) {
	return toStr(a) == toStr(b), nil
}

func toStr(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func TestMapHashZero(t *testing.T) {
	m, err := Open(filepath.Join(t.TempDir(), "m"), Options{Hasher: zeroHasher{}})
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Set("k0", []byte("v0")))
	assert.Equal(t, uint64(1), m.Len())

	v, err := m.Get("k0")
	require.NoError(t, err)
	assert.Equal(t, []byte("v0"), v)

	// More colliding keys walk the perturbed probe chain.
	require.NoError(t, m.Set("k1", []byte("v1")))
	require.NoError(t, m.Set("k2", []byte("v2")))
	assert.Equal(t, uint64(3), m.Len())

	for i := 0; i < 3; i++ {
		v, err := m.Get(fmt.Sprintf("k%d", i))
		require.NoError(t, err)
		assert.Equal(t, []byte(fmt.Sprintf("v%d", i)), v)
	}
}

func TestMapIterators(t *testing.T) {
	m := openMap(t, filepath.Join(t.TempDir(), "m"))

	want := map[string]string{"a": "1", "b": "2", "c": "3"}
	for k, v := range want {
		require.NoError(t, m.Set(k, []byte(v)))
	}

	t.Run("Items", func(t *testing.T) {
		got := map[string]string{}
		it := m.Items()
		for it.Next() {
			got[string(it.Key().([]byte))] = string(it.Value().([]byte))
		}
		require.NoError(t, it.Err())
		assert.Equal(t, want, got)
	})

	t.Run("Keys", func(t *testing.T) {
		var got []string
		it := m.Keys()
		for it.Next() {
			got = append(got, string(it.Key().([]byte)))
			assert.Nil(t, it.Value())
		}
		require.NoError(t, it.Err())
		assert.ElementsMatch(t, []string{"a", "b", "c"}, got)
	})

	t.Run("Values", func(t *testing.T) {
		var got []string
		it := m.Values()
		for it.Next() {
			got = append(got, string(it.Value().([]byte)))
			assert.Nil(t, it.Key())
		}
		require.NoError(t, it.Err())
		assert.ElementsMatch(t, []string{"1", "2", "3"}, got)
	})
}

func TestMapRehash(t *testing.T) {
	if testing.Short() {
		t.Skip("rehash test inserts 43k keys")
	}

	dir := filepath.Join(t.TempDir(), "m2")

	// One key past two thirds of the initial 65,536 slots.
	const n = 43691

	m := openMap(t, dir)
	for i := 0; i < n; i++ {
		require.NoError(t, m.Set(fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("v-%d", i))))
	}

	mask, err := m.mask()
	require.NoError(t, err)
	assert.Equal(t, uint64(131071), mask)

	// The resize invariant holds again after the rehash.
	used, err := m.used()
	require.NoError(t, err)
	assert.Less(t, used*3, (mask+1)*2)

	require.NoError(t, m.Close())

	// The swap left a single index file of the doubled size.
	st, err := os.Stat(filepath.Join(dir, "index.bin"))
	require.NoError(t, err)
	assert.Equal(t, int64(indexSize(131072)), st.Size())
	assert.NoFileExists(t, filepath.Join(dir, "index.bin.0"))
	assert.NoFileExists(t, filepath.Join(dir, "index.bin.1"))

	m = openMap(t, dir)
	assert.Equal(t, uint64(n), m.Len())
	for i := 0; i < n; i += 97 {
		v, err := m.Get(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		assert.Equal(t, []byte(fmt.Sprintf("v-%d", i)), v)
	}
}

func TestMapResizeInvariant(t *testing.T) {
	m := openMap(t, filepath.Join(t.TempDir(), "m"))

	for i := 0; i < 1000; i++ {
		require.NoError(t, m.Set(fmt.Sprintf("key-%d", i), []byte("x")))

		used, err := m.used()
		require.NoError(t, err)
		mask, err := m.mask()
		require.NoError(t, err)
		require.Less(t, used*3, (mask+1)*2)
	}
}
