// SPDX-License-Identifier: GPL-3.0-or-later

package o2

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDialFunc(t *testing.T) {
	cfg := NewConfig()
	fn := NewDialFunc(cfg, DefaultSLogger())

	require.NotNil(t, fn)
	assert.NotNil(t, fn.Dialer)
	assert.NotNil(t, fn.Logger)
	assert.NotNil(t, fn.TimeNow)
	assert.NotNil(t, fn.ErrClassifier)
}

func TestDialFuncSuccess(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	cfg := NewConfig()
	fn := NewDialFunc(cfg, DefaultSLogger())

	conn, err := fn.DialTCP(context.Background(), ln.Addr().String())
	require.NoError(t, err)
	require.NotNil(t, conn)
	conn.Close()
}

func TestDialFuncError(t *testing.T) {
	cfg := NewConfig()
	cfg.Dialer = fakeDialer{err: errors.New("connection refused")}
	fn := NewDialFunc(cfg, DefaultSLogger())

	conn, err := fn.DialTCP(context.Background(), "127.0.0.1:1")
	require.Error(t, err)
	assert.Nil(t, conn)
}

func TestDialFuncContextExpired(t *testing.T) {
	cfg := NewConfig()
	cfg.Dialer = fakeDialer{delay: 10 * time.Millisecond}
	fn := NewDialFunc(cfg, DefaultSLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(5 * time.Millisecond)

	_, err := fn.DialTCP(ctx, "127.0.0.1:1")
	require.Error(t, err)
}

func TestDialFuncSatisfiesFunc(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	cfg := NewConfig()
	var fn Func[string, net.Conn] = NewDialFunc(cfg, DefaultSLogger())

	conn, err := fn.Call(context.Background(), ln.Addr().String())
	require.NoError(t, err)
	require.NotNil(t, conn)
	conn.Close()
}

func TestFuncAdapterWrapsClosure(t *testing.T) {
	var fn Func[int, string] = FuncAdapter[int, string](func(_ context.Context, n int) (string, error) {
		if n < 0 {
			return "", errors.New("negative")
		}
		return strconv.Itoa(n * 2), nil
	})

	out, err := fn.Call(context.Background(), 21)
	require.NoError(t, err)
	assert.Equal(t, "42", out)

	_, err = fn.Call(context.Background(), -1)
	require.Error(t, err)
}

type fakeDialer struct {
	err   error
	delay time.Duration
}

func (f fakeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	client, server := net.Pipe()
	server.Close()
	return client, nil
}
