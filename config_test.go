// SPDX-License-Identifier: GPL-3.0-or-later

package o2

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbdannenberg/o2go/internal/discovery"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	require.NotNil(t, cfg)

	assert.Equal(t, "", cfg.Ensemble)

	// Dialer should be set to *net.Dialer
	_, ok := cfg.Dialer.(*net.Dialer)
	assert.True(t, ok, "Dialer should be *net.Dialer")

	require.NotNil(t, cfg.Logger)

	// ErrClassifier should use errclass by default
	assert.Equal(t, "", cfg.ErrClassifier.Classify(nil))
	assert.Equal(t, "ETIMEDOUT", cfg.ErrClassifier.Classify(context.DeadlineExceeded))

	// TimeNow should be set and return a valid time
	now := cfg.TimeNow()
	assert.False(t, now.IsZero())

	// DiscoveryPorts defaults to a copy of the fixed port list, not an
	// alias, so mutating it doesn't corrupt the package-level default.
	assert.Equal(t, discovery.Ports[:], cfg.DiscoveryPorts)
	cfg.DiscoveryPorts[0] = 0
	assert.NotEqual(t, discovery.Ports[0], cfg.DiscoveryPorts[0])

	assert.Greater(t, cfg.PollTick.Nanoseconds(), int64(0))
}
