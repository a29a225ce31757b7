package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/core"
)

func TestServeReturnsBootstrapFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.ServerHost = "127.0.0.1"
	cfg.ServerPort = 0
	cfg.StartupMaxAttempts = 2
	gen := &flakyGenerator{
		failures: 10,
		err:      &core.ConnectivityError{Service: "ollama", Err: errors.New("connection refused")},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := Serve(ctx, cfg, testOptions(gen)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bootstrap")
	assert.Equal(t, 2, gen.calls)
	assert.NoError(t, ctx.Err(), "server should stop on its own")
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.ServerHost = "127.0.0.1"
	cfg.ServerPort = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, cfg, testOptions(&flakyGenerator{})...) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
