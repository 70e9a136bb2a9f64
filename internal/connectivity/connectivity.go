// Package connectivity tells trackers when the remote store becomes reachable
// or unreachable.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Event int

const (
	Offline Event = iota
	Online
)

func (e Event) String() string {
	if e == Online {
		return "online"
	}
	return "offline"
}

type Signal interface {
	Online() bool
	// Subscribe returns a channel of transitions and a function that cancels
	// the subscription and closes the channel. Events may be dropped for a
	// slow reader, Online() always has the latest state.
	Subscribe() (<-chan Event, func())
}

const subscriberBuffer = 8

// Broadcaster is a Signal driven by explicit SetOnline calls. Only real
// transitions are published, unless Announce is used.
type Broadcaster struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]chan Event
}

func NewBroadcaster(online bool) *Broadcaster {
	return &Broadcaster{
		online: online,
		subs:   make(map[int]chan Event),
	}
}

func (b *Broadcaster) Online() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.online
}

func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// SetOnline records the state and notifies subscribers if it changed.
func (b *Broadcaster) SetOnline(online bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.online == online {
		return
	}
	b.online = online
	b.publishLocked(eventFor(online))
}

// Announce republishes the current state even if nothing changed, the way a
// browser may fire a second "online" event.
func (b *Broadcaster) Announce() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishLocked(eventFor(b.online))
}

func (b *Broadcaster) publishLocked(e Event) {
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Slow subscriber drops the event and must re-read Online()
		}
	}
}

func eventFor(online bool) Event {
	if online {
		return Online
	}
	return Offline
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober polls a Pinger and drives a Broadcaster from the results.
type Prober struct {
	target   Pinger
	out      *Broadcaster
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func NewProber(target Pinger, out *Broadcaster, interval time.Duration, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := interval / 2
	if timeout <= 0 || timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	return &Prober{
		target:   target,
		out:      out,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With(slog.String("component", "connectivity_prober")),
	}
}

// Probe pings once and updates the broadcaster.
func (p *Prober) Probe(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.target.Ping(pctx)
	online := err == nil
	if online != p.out.Online() {
		if err != nil {
			p.logger.Warn("remote store unreachable", slog.String("error", err.Error()))
		} else {
			p.logger.Info("remote store reachable again")
		}
	}
	p.out.SetOnline(online)
	return online
}

// Run probes every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}
