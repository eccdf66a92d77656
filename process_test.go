// SPDX-License-Identifier: GPL-3.0-or-later

package o2

import (
	"net"
	"testing"

	"github.com/rbdannenberg/o2go/internal/sendpipe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnsemble(t *testing.T, ensemble string) *Ensemble {
	t.Helper()
	cfg := NewConfig()
	cfg.Ensemble = ensemble
	e, err := NewEnsemble(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestNewEnsembleRequiresEnsembleName(t *testing.T) {
	cfg := NewConfig()
	_, err := NewEnsemble(cfg)
	assert.Error(t, err)
}

func TestNewEnsembleDerivesSelfName(t *testing.T) {
	e := newTestEnsemble(t, "test")

	parts := splitSelfName(t, e.SelfName())
	require.Len(t, parts, 3)
	assert.Equal(t, "00000000", parts[0])
	assert.Len(t, parts[1], 8)
	assert.NotEqual(t, "0", parts[2])
}

func splitSelfName(t *testing.T, name string) []string {
	t.Helper()
	var parts []string
	start := 0
	for i := 0; i < len(name); i++ {
		if name[i] == ':' {
			parts = append(parts, name[start:i])
			start = i + 1
		}
	}
	parts = append(parts, name[start:])
	return parts
}

func TestIPHexRoundTrip(t *testing.T) {
	ip := net.IPv4(192, 168, 1, 42)
	hexStr := ipHex(ip)
	assert.Equal(t, "c0a8012a", hexStr)

	back, err := parseIPHex(hexStr)
	require.NoError(t, err)
	assert.True(t, back.Equal(ip))
}

func TestParseIPHexRejectsMalformed(t *testing.T) {
	_, err := parseIPHex("not-hex")
	assert.Error(t, err)

	_, err = parseIPHex("aabb")
	assert.Error(t, err)
}

func TestEnsembleCloseIsIdempotent(t *testing.T) {
	e := newTestEnsemble(t, "test")
	assert.NoError(t, e.Close())
	assert.NoError(t, e.Close())
}

func TestCanSendUnknownServiceReturnsPeerGone(t *testing.T) {
	e := newTestEnsemble(t, "test")
	result, err := e.CanSend("nosuchservice")
	assert.ErrorIs(t, err, sendpipe.ErrPeerGone)
	assert.Equal(t, sendpipe.Blocked, result)
}

func TestCanSendLocalServiceSucceeds(t *testing.T) {
	e := newTestEnsemble(t, "test")
	require.NoError(t, e.CreateServiceHandler("echo", func(*Message, any) error { return nil }, nil))

	result, err := e.CanSend("echo")
	require.NoError(t, err)
	assert.Equal(t, sendpipe.Success, result)
}

func TestSendDispatchesToLocalHandler(t *testing.T) {
	e := newTestEnsemble(t, "test")

	var got *Message
	require.NoError(t, e.CreateServiceHandler("echo", func(m *Message, _ any) error {
		got = m
		return nil
	}, nil))

	var b Builder
	b.Start()
	require.NoError(t, b.AddString("hello"))
	m, err := b.Finish(0, "echo", "/ping", false)
	require.NoError(t, err)

	require.NoError(t, e.Send(m))
	require.NotNil(t, got)
	assert.Equal(t, "/echo/ping", got.Address)
}

func TestPollAdvancesWithoutError(t *testing.T) {
	e := newTestEnsemble(t, "test")
	for i := 0; i < 3; i++ {
		require.NoError(t, e.Poll())
	}
}
