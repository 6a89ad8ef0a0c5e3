package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/harvest/internal/config"
)

func TestSchedulerRejectsBadProbeSchedule(t *testing.T) {
	cfg := config.Config{
		Sync:   config.SyncConfig{ProbeSchedule: "every now and then"},
		Export: config.ExportConfig{Timezone: "UTC"},
	}
	s, err := NewScheduler(cfg, NewMonitor(&fakePinger{}, &fakeDrainer{}, nil), nil, nil)
	require.NoError(t, err)
	assert.Error(t, s.Start())
}

func TestSchedulerStartStop(t *testing.T) {
	cfg := config.Config{
		Sync:   config.SyncConfig{ProbeSchedule: "@every 1h"},
		Export: config.ExportConfig{Timezone: "UTC", CronSchedule: "0 21 * * *"},
	}
	s, err := NewScheduler(cfg, NewMonitor(&fakePinger{}, &fakeDrainer{}, nil), nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 1)
	s.Stop()
}

func TestSchedulerInvalidTimezone(t *testing.T) {
	_, err := NewScheduler(config.Config{Export: config.ExportConfig{Timezone: "Nowhere/City"}}, nil, nil, nil)
	assert.Error(t, err)
}
