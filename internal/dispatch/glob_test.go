// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchComponentBasics(t *testing.T) {
	assert.True(t, MatchComponent("a*c", "abc"))
	assert.True(t, MatchComponent("a*c", "ac"))
	assert.False(t, MatchComponent("a*c", "ab"))
	assert.True(t, MatchComponent("a?c", "abc"))
	assert.False(t, MatchComponent("a?c", "abbc"))
}

func TestMatchComponentCharacterClass(t *testing.T) {
	assert.False(t, MatchComponent("a[!b]c", "abc"))
	assert.True(t, MatchComponent("a[!b]c", "axc"))
	assert.True(t, MatchComponent("a[a-z]c", "abc"))
	assert.False(t, MatchComponent("a[a-z]c", "a1c"))
	assert.True(t, MatchComponent("a[]x]c", "a]c"), "leading ] in class is a literal member")
}

func TestMatchComponentAlternation(t *testing.T) {
	assert.True(t, MatchComponent("{foo,bar}", "foo"))
	assert.True(t, MatchComponent("{foo,bar}", "bar"))
	assert.False(t, MatchComponent("{foo,bar}", "baz"))
	assert.True(t, MatchComponent("{fo,ba}o", "foo"))
}

func TestMatchComponentDoesNotCrossSlashBoundaryPerComponentSplit(t *testing.T) {
	// As specified: match("abc/def", "a*/def") == true only when invoked
	// as two components, i.e. the caller splits on '/' first.
	assert.True(t, MatchComponent("a*", "abc"))
	assert.True(t, MatchComponent("def", "def"))
}

func TestHasWildcard(t *testing.T) {
	assert.False(t, HasWildcard("/synth/freq"))
	assert.True(t, HasWildcard("/synth/*"))
	assert.True(t, HasWildcard("/synth/[ab]"))
	assert.True(t, HasWildcard("/synth/{a,b}"))
}
