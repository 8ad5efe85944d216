package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrlesur/live-memory/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.S3.BucketName = "test-bucket"
	cfg.S3.AccessKeyID = "test-key"
	cfg.S3.SecretAccessKey = "test-secret"
	cfg.S3.EndpointURL = "http://127.0.0.1:0"
	cfg.Server.Port = 0
	return cfg
}

func TestNew_WiresEveryService(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.NotNil(t, a.store)
	assert.NotNil(t, a.locks)
	assert.NotNil(t, a.tokens)
	assert.NotNil(t, a.gc)
	assert.NotNil(t, a.server)
	assert.Nil(t, a.cron, "no cron job should be scheduled when GC.Schedule is empty")
}

func TestNew_SchedulesGCSweepWhenConfigured(t *testing.T) {
	cfg := testConfig(t)
	cfg.GC.Schedule = "@every 1h"
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, a.cron)
}

func TestNew_RejectsAnUnparsableSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.GC.Schedule = "not a cron expression"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestApp_RunStopsOnContextCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
