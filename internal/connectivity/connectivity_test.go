package connectivity

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type toggleProber struct {
	down  atomic.Bool
	calls atomic.Int32
}

func (p *toggleProber) Probe(ctx context.Context) error {
	p.calls.Add(1)
	if p.down.Load() {
		return errors.New("unreachable")
	}
	return nil
}

func testConfig() Config {
	return Config{Interval: 10 * time.Millisecond, Timeout: 100 * time.Millisecond}
}

func TestNewMonitor_Validation(t *testing.T) {
	_, err := NewMonitor(Config{Interval: 0, Timeout: time.Second}, &toggleProber{}, nil)
	assert.Error(t, err)

	_, err = NewMonitor(DefaultConfig(), nil, nil)
	assert.Error(t, err, "dial prober needs an address")

	m, err := NewMonitor(DefaultConfig(), &toggleProber{}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, m.Current())
}

func TestMonitor_CheckPublishesTransitionsOnly(t *testing.T) {
	prober := &toggleProber{}
	m, err := NewMonitor(testConfig(), prober, nil)
	require.NoError(t, err)

	sub := m.Subscribe(8)

	assert.Equal(t, StatusOnline, m.Check(context.Background()))
	assert.Equal(t, StatusOnline, m.Check(context.Background()))
	prober.down.Store(true)
	assert.Equal(t, StatusOffline, m.Check(context.Background()))
	prober.down.Store(false)
	m.Check(context.Background())

	m.Stop()

	var got []Status
	for s := range sub.C() {
		got = append(got, s)
	}
	assert.Equal(t, []Status{StatusOnline, StatusOffline, StatusOnline}, got)
}

func TestMonitor_StartPollsUntilStopped(t *testing.T) {
	prober := &toggleProber{}
	m, err := NewMonitor(testConfig(), prober, nil)
	require.NoError(t, err)

	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()), "second start should fail")

	require.Eventually(t, func() bool {
		return m.Current() == StatusOnline && prober.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	prober.down.Store(true)
	require.Eventually(t, func() bool {
		return m.Current() == StatusOffline
	}, time.Second, 5*time.Millisecond)

	m.Stop()
	calls := prober.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, prober.calls.Load(), "no probes after stop")
	assert.Error(t, m.Start(context.Background()), "stopped monitor cannot restart")
}

func TestDialProber(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	p := DialProber{Address: addr, Timeout: time.Second}
	assert.NoError(t, p.Probe(context.Background()))

	ln.Close()
	assert.Error(t, p.Probe(context.Background()))
}
