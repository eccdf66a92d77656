// SPDX-License-Identifier: GPL-3.0-or-later

package sched

import (
	"testing"

	"github.com/rbdannenberg/o2go/internal/msg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tmsg(addr string) *msg.Message {
	return &msg.Message{Address: addr, TypeTag: ","}
}

func TestScheduleZeroOrPastDeliversImmediately(t *testing.T) {
	w := New(false)
	var got []string
	deliver := func(m *msg.Message) error { got = append(got, m.Address); return nil }

	require.NoError(t, w.Schedule(0, tmsg("/a"), 10, deliver))
	require.NoError(t, w.Schedule(5, tmsg("/b"), 10, deliver))
	assert.Equal(t, []string{"/a", "/b"}, got)
}

func TestScheduleGlobalWithoutClockFails(t *testing.T) {
	w := New(true)
	err := w.Schedule(100, tmsg("/a"), 1, func(*msg.Message) error { return nil })
	assert.ErrorIs(t, err, ErrNoClock)
}

func TestPollDeliversInTimestampOrderAcrossBins(t *testing.T) {
	w := New(false)
	deliver := func(*msg.Message) error { return nil }
	require.NoError(t, w.Schedule(2.0, tmsg("/late"), 0, deliver))
	require.NoError(t, w.Schedule(1.0, tmsg("/early"), 0, deliver))

	var got []string
	require.NoError(t, w.Poll(3.0, func(m *msg.Message) error {
		got = append(got, m.Address)
		return nil
	}))
	assert.Equal(t, []string{"/early", "/late"}, got)
}

func TestPollTiesFireInInsertionOrder(t *testing.T) {
	w := New(false)
	deliver := func(*msg.Message) error { return nil }
	require.NoError(t, w.Schedule(1.0, tmsg("/first"), 0, deliver))
	require.NoError(t, w.Schedule(1.0, tmsg("/second"), 0, deliver))

	var got []string
	require.NoError(t, w.Poll(2.0, func(m *msg.Message) error {
		got = append(got, m.Address)
		return nil
	}))
	assert.Equal(t, []string{"/first", "/second"}, got)
}

func TestPollLargeJumpDoesNotSkipEarlierBins(t *testing.T) {
	w := New(false)
	deliver := func(*msg.Message) error { return nil }
	require.NoError(t, w.Schedule(1.0, tmsg("/one"), 0, deliver))
	require.NoError(t, w.Schedule(500.0, tmsg("/far"), 0, deliver))

	var got []string
	// A jump far beyond one wheel revolution (128 bins @ 0.01s = 1.28s)
	// must still dispatch /one before /far, not skip it via wraparound.
	require.NoError(t, w.Poll(1000.0, func(m *msg.Message) error {
		got = append(got, m.Address)
		return nil
	}))
	require.Len(t, got, 2)
	assert.Equal(t, "/one", got[0])
	assert.Equal(t, "/far", got[1])
}

func TestSchedulerStartGlobalEnablesGlobalScheduling(t *testing.T) {
	s := NewScheduler()
	err := s.ScheduleGlobal(10, tmsg("/a"), 0, func(*msg.Message) error { return nil })
	assert.ErrorIs(t, err, ErrNoClock)

	s.StartGlobal(5)
	require.NoError(t, s.ScheduleGlobal(10, tmsg("/a"), 5, func(*msg.Message) error { return nil }))

	var delivered bool
	require.NoError(t, s.PollGlobal(11, func(*msg.Message) error { delivered = true; return nil }))
	assert.True(t, delivered)
}
