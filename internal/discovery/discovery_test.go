// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextIntervalCapsAtDefaultPeriod(t *testing.T) {
	iv := InitialDiscoveryPeriod
	for i := 0; i < 100; i++ {
		iv = NextInterval(iv)
	}
	assert.Equal(t, DefaultDiscoveryPeriod, iv)
}

func TestRoundRobinWrapsAtBoundIndex(t *testing.T) {
	assert.Equal(t, 1, RoundRobin(0, 3))
	assert.Equal(t, 0, RoundRobin(3, 3))
}

func TestDecideOnInfoSelfBroadcastIgnored(t *testing.T) {
	assert.Equal(t, ActionIgnore, DecideOnInfo("a:a:1000", "a:a:1000", false))
}

func TestDecideOnInfoKnownPeerIgnored(t *testing.T) {
	assert.Equal(t, ActionIgnore, DecideOnInfo("a:a:1000", "b:b:2000", true))
}

func TestDecideOnInfoGreaterNameBecomesServer(t *testing.T) {
	assert.Equal(t, ActionBecomeServerSendCallback, DecideOnInfo("z:z:9000", "a:a:1000", false))
	assert.Equal(t, ActionBecomeClientConnect, DecideOnInfo("a:a:1000", "z:z:9000", false))
}

func TestOnHubRequestExcludesSenderFromAnnounceList(t *testing.T) {
	action := OnHubRequest("new:new:1000", []string{"a:a:1", "new:new:1000", "b:b:2"})
	assert.Equal(t, "new:new:1000", action.ReplyTo)
	assert.ElementsMatch(t, []string{"a:a:1", "b:b:2"}, action.AnnounceTo)
}

func TestPortListHasSixteenEntries(t *testing.T) {
	assert.Len(t, Ports, 16)
}
