package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchReloads(t *testing.T) {
	path := writeFile(t, "urlobserver.yaml", "routes:\n  - pattern: ^/a$\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, nil, func(c *Config) { got <- c })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	// An invalid file is skipped.
	require.NoError(t, os.WriteFile(path, []byte("routes:\n  - pattern: \"^/(\"\n"), 0o644))
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("routes:\n  - pattern: ^/a$\n  - pattern: ^/b$\n"), 0o644))

	select {
	case cfg := <-got:
		assert.Len(t, cfg.Routes, 2)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return")
	}
}

func TestWatchIgnoresSiblings(t *testing.T) {
	path := writeFile(t, "urlobserver.yaml", "routes: []\n")

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()

	calls := make(chan struct{}, 1)
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.WriteFile(path+".bak", []byte("x"), 0o644)
	}()

	require.NoError(t, Watch(ctx, path, 10*time.Millisecond, nil, func(*Config) { calls <- struct{}{} }))
	assert.Empty(t, calls)
}
