package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel.json")
	if err := os.WriteFile(path, []byte(`{"timeSliceTicks": 10}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	applied := make(chan Config, 4)
	go func() {
		_ = Watch(ctx, path, func(cfg Config) { applied <- cfg })
	}()

	// Give the watcher a moment to install before the first rewrite.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte(`{"timeSliceTicks": 42}`), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case cfg := <-applied:
		if cfg.TimeSliceTicks != 42 {
			t.Fatalf("reloaded timeSliceTicks = %d, want 42", cfg.TimeSliceTicks)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never delivered the rewritten config")
	}
}

func TestWatchSkipsInvalidStates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	applied := make(chan Config, 4)
	go func() {
		_ = Watch(ctx, path, func(cfg Config) { applied <- cfg })
	}()
	time.Sleep(100 * time.Millisecond)

	// Broken JSON must be skipped, then the next valid write applies.
	if err := os.WriteFile(path, []byte(`{"cpus":`), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := os.WriteFile(path, []byte(`{"cpus": 2}`), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-applied:
			if cfg.CPUs == 2 {
				return
			}
		case <-deadline:
			t.Fatal("watcher never delivered a valid config")
		}
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- Watch(ctx, path, func(Config) {})
	}()
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Watch = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop on cancel")
	}
}
