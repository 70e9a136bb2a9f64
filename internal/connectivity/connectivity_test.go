package connectivity_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/limbo/plankup/internal/connectivity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster(t *testing.T) {
	b := connectivity.NewBroadcaster(false)
	events, cancel := b.Subscribe()
	assert.False(t, b.Online())

	b.SetOnline(true)
	b.SetOnline(true)
	b.SetOnline(false)
	b.Announce()

	assert.Equal(t, connectivity.Online, <-events)
	assert.Equal(t, connectivity.Offline, <-events)
	assert.Equal(t, connectivity.Offline, <-events)
	select {
	case e := <-events:
		t.Fatalf("unexpected event %v", e)
	default:
	}

	cancel()
	cancel()
	_, open := <-events
	assert.False(t, open)
	assert.NotPanics(t, func() { b.SetOnline(true) })
}

type fakePinger struct {
	mu  sync.Mutex
	err error
}

func (fp *fakePinger) Ping(ctx context.Context) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.err
}

func (fp *fakePinger) set(err error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.err = err
}

func TestProber(t *testing.T) {
	pinger := &fakePinger{}
	b := connectivity.NewBroadcaster(false)
	prober := connectivity.NewProber(pinger, b, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	assert.True(t, prober.Probe(ctx))
	assert.True(t, b.Online())
	pinger.set(errors.New("connection refused"))
	assert.False(t, prober.Probe(ctx))
	assert.False(t, b.Online())
}

func TestProberRun(t *testing.T) {
	pinger := &fakePinger{}
	b := connectivity.NewBroadcaster(false)
	events, cancel := b.Subscribe()
	defer cancel()
	prober := connectivity.NewProber(pinger, b, 10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		prober.Run(ctx)
		close(done)
	}()

	select {
	case e := <-events:
		assert.Equal(t, connectivity.Online, e)
	case <-time.After(time.Second):
		t.Fatal("no online event")
	}
	pinger.set(errors.New("down"))
	select {
	case e := <-events:
		assert.Equal(t, connectivity.Offline, e)
	case <-time.After(time.Second):
		t.Fatal("no offline event")
	}
	stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "prober didn't stop")
	}
}
