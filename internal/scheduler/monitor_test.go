package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mamadbah2/harvest/internal/queue"
)

type fakePinger struct{ err error }

func (p *fakePinger) Ping(context.Context) error { return p.err }

type fakeDrainer struct {
	pending int
	drains  int
}

func (d *fakeDrainer) Len(context.Context) (int, error) { return d.pending, nil }

func (d *fakeDrainer) Drain(context.Context) (queue.DrainResult, error) {
	d.drains++
	replayed := d.pending
	d.pending = 0
	return queue.DrainResult{Replayed: replayed}, nil
}

func TestMonitorTracksLink(t *testing.T) {
	pinger := &fakePinger{}
	drainer := &fakeDrainer{}
	m := NewMonitor(pinger, drainer, nil)
	assert.True(t, m.Online())

	pinger.err = errors.New("no route to host")
	m.Probe(context.Background())
	assert.False(t, m.Online())
	assert.Zero(t, drainer.drains)

	drainer.pending = 3
	pinger.err = nil
	m.Probe(context.Background())
	assert.True(t, m.Online())
	assert.Equal(t, 1, drainer.drains)
	assert.Zero(t, drainer.pending)
}

func TestMonitorSkipsEmptyQueue(t *testing.T) {
	drainer := &fakeDrainer{}
	m := NewMonitor(&fakePinger{}, drainer, nil)

	m.Probe(context.Background())
	assert.Zero(t, drainer.drains)
}

func TestMonitorDrainsLeftoversWhileOnline(t *testing.T) {
	drainer := &fakeDrainer{pending: 1}
	m := NewMonitor(&fakePinger{}, drainer, nil)

	m.Probe(context.Background())
	assert.Equal(t, 1, drainer.drains)
}

type signalDrainer struct {
	drained chan int
}

func (d *signalDrainer) Len(context.Context) (int, error) { return 1, nil }

func (d *signalDrainer) Drain(context.Context) (queue.DrainResult, error) {
	d.drained <- 1
	return queue.DrainResult{Replayed: 1}, nil
}

func TestMonitorNudgeTriggersDrain(t *testing.T) {
	drainer := &signalDrainer{drained: make(chan int, 4)}
	m := NewMonitor(&fakePinger{}, drainer, nil)

	// nudges before Watch runs collapse into one
	m.Nudge()
	m.Nudge()
	m.Nudge()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Watch(ctx)

	select {
	case <-drainer.drained:
	case <-time.After(time.Second):
		t.Fatal("nudge did not drain")
	}
	select {
	case <-drainer.drained:
		t.Fatal("merged nudges drained twice")
	case <-time.After(50 * time.Millisecond):
	}
}
