// SPDX-License-Identifier: GPL-3.0-or-later

package o2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateServiceHandlerNotifiesStatus(t *testing.T) {
	e := newTestEnsemble(t, "test")

	var notices []StatusNotice
	e.OnStatusChange(func(n StatusNotice) { notices = append(notices, n) })

	require.NoError(t, e.CreateServiceHandler("synth", func(*Message, any) error { return nil }, nil))
	require.NotEmpty(t, notices)
	assert.Equal(t, "synth", notices[len(notices)-1].Service)
	assert.Equal(t, StatusLocal, e.Status("synth"))
}

func TestRemoveServiceDropsProviderAndNotifies(t *testing.T) {
	e := newTestEnsemble(t, "test")
	require.NoError(t, e.CreateServiceHandler("synth", func(*Message, any) error { return nil }, nil))

	var notices []StatusNotice
	e.OnStatusChange(func(n StatusNotice) { notices = append(notices, n) })

	require.NoError(t, e.RemoveService("synth"))
	require.NotEmpty(t, notices)
	assert.Equal(t, StatusUnknown, e.Status("synth"))
}

func TestMethodNewInstallsTreeHandler(t *testing.T) {
	e := newTestEnsemble(t, "test")

	var got *Message
	require.NoError(t, e.MethodNew("synth", "/freq", "f", func(m *Message, _ any) error {
		got = m
		return nil
	}, nil))

	var b Builder
	b.Start()
	require.NoError(t, b.AddFloat32(440))
	m, err := b.Finish(0, "synth", "/freq", false)
	require.NoError(t, err)

	require.NoError(t, e.Send(m))
	require.NotNil(t, got)
	assert.Equal(t, "/synth/freq", got.Address)
}

func TestMethodNewCreatesServiceImplicitly(t *testing.T) {
	e := newTestEnsemble(t, "test")
	require.NoError(t, e.MethodNew("synth", "/freq", "f", func(*Message, any) error { return nil }, nil))
	assert.Equal(t, StatusLocal, e.Status("synth"))
}

func TestCreateServiceTreeThenMethodNew(t *testing.T) {
	e := newTestEnsemble(t, "test")
	require.NoError(t, e.CreateServiceTree("synth"))
	assert.Equal(t, StatusLocal, e.Status("synth"))

	var called bool
	require.NoError(t, e.MethodNew("synth", "/gate", "i", func(*Message, any) error {
		called = true
		return nil
	}, nil))

	var b Builder
	b.Start()
	require.NoError(t, b.AddInt32(1))
	m, err := b.Finish(0, "synth", "/gate", false)
	require.NoError(t, err)
	require.NoError(t, e.Send(m))
	assert.True(t, called)
}
