package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/covefuzz/covefuzz/internal/config"
)

func writeExecutable(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("write executable %s: %v", path, err)
	}
}

func TestRunSkipsTargetsWithoutSeeds(t *testing.T) {
	binariesDir := t.TempDir()
	seedsDir := t.TempDir()
	outputDir := t.TempDir()

	writeExecutable(t, filepath.Join(binariesDir, "has-seed"), "cat >/dev/null\nexit 0\n")
	writeExecutable(t, filepath.Join(binariesDir, "no-seed"), "cat >/dev/null\nexit 0\n")
	if err := os.WriteFile(filepath.Join(seedsDir, "has-seed.txt"), []byte("seed"), 0644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	cfg := config.Defaults()
	cfg.BinariesDir = binariesDir
	cfg.SeedsDir = seedsDir
	cfg.OutputDir = outputDir
	cfg.ExecTimeout = 100 * time.Millisecond
	cfg.OuterDeadline = 100 * time.Millisecond
	cfg.ProgressInterval = time.Hour

	h := New(cfg, nil)
	summaries, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected exactly 1 summary for the target with a seed, got %d", len(summaries))
	}
	if summaries[0].Target != "has-seed" {
		t.Fatalf("unexpected target fuzzed: %q", summaries[0].Target)
	}
}

func TestRunFailsOnMissingBinariesDir(t *testing.T) {
	cfg := config.Defaults()
	cfg.BinariesDir = "/nonexistent/binaries/dir"
	cfg.OutputDir = t.TempDir()

	h := New(cfg, nil)
	_, err := h.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error when the binaries directory does not exist")
	}
}
