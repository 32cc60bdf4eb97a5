package hashindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tracked struct {
	name     string
	released int
}

func counter() (func(*tracked), *[]*tracked) {
	var seen []*tracked
	return func(v *tracked) {
		v.released++
		seen = append(seen, v)
	}, &seen
}

func TestIndex_LookupMissing(t *testing.T) {
	ix := New[string](Upsert, nil)

	_, ok := ix.Lookup(7)
	assert.False(t, ok)
	assert.Equal(t, 0, ix.Len())
}

func TestIndex_ShadowReturnsNewest(t *testing.T) {
	release, seen := counter()
	ix := New(Shadow, release)

	first := &tracked{name: "first"}
	second := &tracked{name: "second"}
	require.NoError(t, ix.Insert(42, first))
	require.NoError(t, ix.Insert(42, second))

	got, ok := ix.Lookup(42)
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 2, ix.Len())
	assert.Empty(t, *seen, "shadowed value must stay alive until Destroy")

	ix.Destroy()
	assert.Equal(t, 1, first.released)
	assert.Equal(t, 1, second.released)
	assert.Len(t, *seen, 2)
}

func TestIndex_UpsertReleasesReplacedValue(t *testing.T) {
	release, seen := counter()
	ix := New(Upsert, release)

	first := &tracked{name: "first"}
	second := &tracked{name: "second"}
	require.NoError(t, ix.Insert(42, first))
	require.NoError(t, ix.Insert(42, second))

	got, ok := ix.Lookup(42)
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, ix.Len())
	assert.Equal(t, 1, first.released)
	assert.Equal(t, 0, second.released)

	ix.Destroy()
	assert.Equal(t, 1, first.released)
	assert.Equal(t, 1, second.released)
	assert.Len(t, *seen, 2)
}

func TestIndex_CollidingKeys(t *testing.T) {
	ix := New[string](Upsert, nil)

	// 1, 257 and -255 all land in bucket 1.
	require.NoError(t, ix.Insert(1, "one"))
	require.NoError(t, ix.Insert(257, "two-five-seven"))
	require.NoError(t, ix.Insert(-255, "minus"))

	for key, want := range map[int32]string{1: "one", 257: "two-five-seven", -255: "minus"} {
		got, ok := ix.Lookup(key)
		require.True(t, ok, "key %d", key)
		assert.Equal(t, want, got)
	}
	_, ok := ix.Lookup(513)
	assert.False(t, ok)
}

func TestIndex_NegativeKeys(t *testing.T) {
	ix := New[int](Upsert, nil)
	require.NoError(t, ix.Insert(-1, 10))
	require.NoError(t, ix.Insert(-2147483648, 20))

	v, ok := ix.Lookup(-1)
	require.True(t, ok)
	assert.Equal(t, 10, v)

	v, ok = ix.Lookup(-2147483648)
	require.True(t, ok)
	assert.Equal(t, 20, v)
}

func TestIndex_DestroyIsIdempotent(t *testing.T) {
	release, seen := counter()
	ix := New(Shadow, release)
	for i := int32(0); i < 600; i++ {
		require.NoError(t, ix.Insert(i%300, &tracked{}))
	}

	ix.Destroy()
	ix.Destroy()

	assert.Len(t, *seen, 600)
	for _, v := range *seen {
		assert.Equal(t, 1, v.released)
	}
	assert.Equal(t, 0, ix.Len())

	_, ok := ix.Lookup(1)
	assert.False(t, ok)
	assert.ErrorIs(t, ix.Insert(1, &tracked{}), ErrDestroyed)
}

func TestIndex_NilIsSafe(t *testing.T) {
	var ix *Index[int]

	assert.ErrorIs(t, ix.Insert(1, 1), ErrDestroyed)
	_, ok := ix.Lookup(1)
	assert.False(t, ok)
	assert.Equal(t, 0, ix.Len())
	ix.Destroy()
}

func TestIndex_EachSkipsShadowed(t *testing.T) {
	ix := New[string](Shadow, nil)
	require.NoError(t, ix.Insert(5, "old"))
	require.NoError(t, ix.Insert(5, "new"))
	require.NoError(t, ix.Insert(6, "six"))

	got := map[int32]string{}
	ix.Each(func(k int32, v string) {
		_, dup := got[k]
		assert.False(t, dup, "key %d visited twice", k)
		got[k] = v
	})
	assert.Equal(t, map[int32]string{5: "new", 6: "six"}, got)
}
