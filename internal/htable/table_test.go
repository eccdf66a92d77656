// SPDX-License-Identifier: GPL-3.0-or-later

package htable

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetDelete(t *testing.T) {
	tb := New[int]()
	tb.Set("/synth/freq", 1)
	tb.Set("/synth/gain", 2)

	v, ok := tb.Get("/synth/freq")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	assert.True(t, tb.Delete("/synth/freq"))
	_, ok = tb.Get("/synth/freq")
	assert.False(t, ok)

	assert.False(t, tb.Delete("/not/there"))
}

func TestOverwriteDoesNotGrowCount(t *testing.T) {
	tb := New[int]()
	tb.Set("a", 1)
	tb.Set("a", 2)
	assert.Equal(t, 1, tb.Len())
	v, _ := tb.Get("a")
	assert.Equal(t, 2, v)
}

func TestRehashPreservesAllEntries(t *testing.T) {
	tb := New[int]()
	const n = 500
	for i := 0; i < n; i++ {
		tb.Set(fmt.Sprintf("/svc%d/path", i), i)
	}
	require.Equal(t, n, tb.Len())
	for i := 0; i < n; i++ {
		v, ok := tb.Get(fmt.Sprintf("/svc%d/path", i))
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestShrinkAfterManyDeletes(t *testing.T) {
	tb := New[int]()
	const n = 200
	for i := 0; i < n; i++ {
		tb.Set(fmt.Sprintf("k%d", i), i)
	}
	for i := 0; i < n-2; i++ {
		tb.Delete(fmt.Sprintf("k%d", i))
	}
	assert.Equal(t, 2, tb.Len())
	for i := n - 2; i < n; i++ {
		_, ok := tb.Get(fmt.Sprintf("k%d", i))
		assert.True(t, ok)
	}
}

func TestEachVisitsEveryEntry(t *testing.T) {
	tb := New[int]()
	want := map[string]int{"a": 1, "b": 2, "c": 3}
	for k, v := range want {
		tb.Set(k, v)
	}
	got := map[string]int{}
	tb.Each(func(k string, v int) { got[k] = v })
	assert.Equal(t, want, got)
}
