// SPDX-License-Identifier: GPL-3.0-or-later

package sendpipe

import (
	"testing"

	"github.com/rbdannenberg/o2go/internal/directory"
	"github.com/rbdannenberg/o2go/internal/msg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueEnqueueAdvanceDrain(t *testing.T) {
	var q Queue
	q.Enqueue([]byte("abc"))
	q.Enqueue([]byte("de"))
	assert.False(t, q.Empty())
	assert.Equal(t, []byte("abc"), q.Front())

	q.Advance(2)
	assert.Equal(t, []byte("c"), q.Front())
	q.Advance(1)
	assert.Equal(t, []byte("de"), q.Front())

	frames := q.Drain()
	assert.Equal(t, [][]byte{[]byte("de")}, frames)
	assert.True(t, q.Empty())
}

func TestCanSendStates(t *testing.T) {
	res, err := CanSend(nil)
	assert.ErrorIs(t, err, ErrPeerGone)
	assert.Equal(t, Blocked, res)

	var q Queue
	res, err = CanSend(&q)
	require.NoError(t, err)
	assert.Equal(t, Success, res)

	q.Enqueue([]byte("x"))
	res, err = CanSend(&q)
	require.NoError(t, err)
	assert.Equal(t, Blocked, res)
}

func TestReentryDefersDuringDelivery(t *testing.T) {
	var r Reentry
	var order []string
	deliver := func(m *msg.Message) error {
		order = append(order, m.Address)
		return nil
	}

	// Enter simulates already being inside the delivery of "/outer" (the
	// caller of Enter delivers it directly, not through Send).
	r.Enter()
	require.NoError(t, deliver(&msg.Message{Address: "/outer"}))
	// A handler-triggered send while that delivery is still in progress
	// must defer instead of running immediately.
	require.NoError(t, r.Send(&msg.Message{Address: "/inner"}, deliver))
	assert.Equal(t, []string{"/outer"}, order)

	require.NoError(t, r.Leave(deliver))
	assert.Equal(t, []string{"/outer", "/inner"}, order)
}

func TestPipelineRouteToRemoteEnqueues(t *testing.T) {
	p := NewPipeline()
	provider := &directory.Provider{Kind: directory.ProviderRemote, ProcessName: "peer:peer:5000"}
	m := &msg.Message{Address: "/synth/freq", TypeTag: ","}

	require.NoError(t, p.Route(provider, m, nil))
	res, err := p.CanSendTo("peer:peer:5000")
	require.NoError(t, err)
	assert.Equal(t, Blocked, res)
}

func TestPipelineRouteToOSCCallsOscSend(t *testing.T) {
	p := NewPipeline()
	provider := &directory.Provider{Kind: directory.ProviderOSC, OSC: &directory.OSCDelegate{UDPAddress: "10.0.0.5:9000"}}
	m := &msg.Message{Address: "/synth/freq", TypeTag: ","}

	var gotAddr string
	require.NoError(t, p.Route(provider, m, func(udpAddress string, mm *msg.Message) error {
		gotAddr = udpAddress
		return nil
	}))
	assert.Equal(t, "10.0.0.5:9000", gotAddr)
}
