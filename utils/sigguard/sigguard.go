// Package sigguard turns SIGINT/SIGTERM into a flag the phase runner polls
// between phases.
package sigguard

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// Guard records whether an interrupt has been received.
type Guard struct {
	flag    atomic.Bool
	signals chan os.Signal
	done    chan struct{}
	once    sync.Once
}

// Install starts listening for SIGINT and SIGTERM. Call Stop when the run ends.
func Install() *Guard {
	g := &Guard{
		signals: make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}
	signal.Notify(g.signals, os.Interrupt, syscall.SIGTERM)
	go g.watch()
	return g
}

func (g *Guard) watch() {
	for {
		select {
		case <-g.signals:
			g.flag.Store(true)
		case <-g.done:
			return
		}
	}
}

// Trip sets the flag as if a signal arrived.
func (g *Guard) Trip() {
	if g == nil {
		return
	}
	g.flag.Store(true)
}

// Interrupted reports whether a signal has been received.
func (g *Guard) Interrupted() bool {
	if g == nil {
		return false
	}
	return g.flag.Load()
}

// Stop removes the handlers. The flag keeps its value.
func (g *Guard) Stop() {
	if g == nil {
		return
	}
	g.once.Do(func() {
		if g.signals != nil {
			signal.Stop(g.signals)
		}
		if g.done != nil {
			close(g.done)
		}
	})
}
