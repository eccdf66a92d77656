// SPDX-License-Identifier: GPL-3.0-or-later

package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRemoveProperty(t *testing.T) {
	props := ""
	props = SetProperty(props, "color", "blue")
	value, ok := GetProperty(props, "color")
	require.True(t, ok)
	assert.Equal(t, "blue", value)

	props = SetProperty(props, "color", "red;green")
	value, ok = GetProperty(props, "color")
	require.True(t, ok)
	assert.Equal(t, "red;green", value)

	props = RemoveProperty(props, "color")
	_, ok = GetProperty(props, "color")
	assert.False(t, ok)
}

func TestSetPropertyPrependsNewestFirst(t *testing.T) {
	props := SetProperty("", "color", "blue")
	props = SetProperty(props, "kind", "organ")
	assert.Equal(t, ";kind:organ;color:blue;", props)

	props = SetProperty(props, "color", "red")
	assert.Equal(t, ";color:red;kind:organ;", props)
}

func TestEscapeUnescapeRoundTrip(t *testing.T) {
	raw := `a;b:c\d`
	assert.Equal(t, raw, UnescapeValue(EscapeValue(raw)))
}

func TestSearchResumesFromIndex(t *testing.T) {
	entries := []PropEntry{
		{Name: "a", Props: SetProperty("", "kind", "input")},
		{Name: "b", Props: SetProperty("", "kind", "output")},
		{Name: "c", Props: SetProperty("", "kind", "input")},
	}
	assert.Equal(t, 0, Search(entries, 0, "kind", "input"))
	assert.Equal(t, 2, Search(entries, 1, "kind", "input"))
	assert.Equal(t, -1, Search(entries, 3, "kind", "input"))
}
