package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/queue"
	"github.com/mamadbah2/harvest/internal/store"
)

const probeTimeout = 5 * time.Second

// Drainer is the part of the offline queue the monitor drives.
type Drainer interface {
	Drain(ctx context.Context) (queue.DrainResult, error)
	Len(ctx context.Context) (int, error)
}

// Monitor tracks whether the remote store is reachable. It starts optimistic
// so the first commits are attempted instead of queued.
type Monitor struct {
	pinger  store.Pinger
	drainer Drainer
	logger  *zap.Logger
	online  atomic.Bool
	nudges  chan struct{}
}

// NewMonitor builds a monitor probing pinger and draining drainer.
func NewMonitor(pinger store.Pinger, drainer Drainer, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Monitor{pinger: pinger, drainer: drainer, logger: logger, nudges: make(chan struct{}, 1)}
	m.online.Store(true)
	return m
}

// Online reports the last probe outcome.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Nudge asks Watch for an immediate probe. Nudges arriving while one is
// pending are merged; Nudge never blocks.
func (m *Monitor) Nudge() {
	select {
	case m.nudges <- struct{}{}:
	default:
	}
}

// Watch serves nudges until ctx ends.
func (m *Monitor) Watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.nudges:
			m.Probe(ctx)
		}
	}
}

// Probe pings the store. Coming back online, or being online with a
// non-empty queue, triggers a drain.
func (m *Monitor) Probe(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	err := m.pinger.Ping(pingCtx)
	cancel()

	online := err == nil
	was := m.online.Swap(online)
	if !online {
		if was {
			m.logger.Warn("remote store unreachable, switching to offline mode", zap.Error(err))
		}
		return
	}
	if !was {
		m.logger.Info("remote store reachable again")
	}

	pending, err := m.drainer.Len(ctx)
	if err != nil {
		m.logger.Error("failed to read offline queue", zap.Error(err))
		return
	}
	if pending == 0 {
		return
	}

	result, err := m.drainer.Drain(ctx)
	if err != nil {
		m.logger.Warn("background sync halted", zap.Int("replayed", result.Replayed), zap.Int("remaining", result.Remaining), zap.Error(err))
		return
	}
	m.logger.Info("background sync finished", zap.Int("replayed", result.Replayed))
}
