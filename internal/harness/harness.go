// Package harness enumerates target binaries and drives the fuzz loop
// over each one sequentially.
package harness

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/covefuzz/covefuzz/internal/config"
	"github.com/covefuzz/covefuzz/internal/ferrors"
	"github.com/covefuzz/covefuzz/internal/fuzzloop"
	"github.com/covefuzz/covefuzz/internal/report"
)

// Harness pairs each binary under cfg.BinariesDir with its seed file
// under cfg.SeedsDir and fuzzes them one at a time.
type Harness struct {
	cfg   config.Config
	log   *zap.Logger
	store *report.Store
}

// New builds a Harness from a resolved config and logger.
func New(cfg config.Config, log *zap.Logger) *Harness {
	if log == nil {
		log = zap.NewNop()
	}
	return &Harness{cfg: cfg, log: log, store: report.NewStore(cfg.OutputDir)}
}

// Run enumerates /binaries, fuzzes each target in lexical order, and
// returns the per-target summaries. The only error that aborts the run
// is a missing or unreadable binaries directory; a single target's
// failure (no seed file, or a seed file RunTarget cannot read) is logged
// and skipped so the rest of the run proceeds.
func (h *Harness) Run(ctx context.Context) ([]fuzzloop.Summary, error) {
	defer h.store.Close()

	entries, err := os.ReadDir(h.cfg.BinariesDir)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.CategoryBinariesDir, "read binaries directory", err)
	}

	loop := fuzzloop.New(h.cfg, h.log, h.store)
	var summaries []fuzzloop.Summary

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		target := entry.Name()
		binaryPath := filepath.Join(h.cfg.BinariesDir, target)
		seedPath := filepath.Join(h.cfg.SeedsDir, target+".txt")

		if _, err := os.Stat(seedPath); err != nil {
			h.log.Warn("skipping target: no seed file", zap.String("target", target), zap.String("seed_path", seedPath))
			continue
		}

		h.log.Info("fuzzing target", zap.String("target", target))
		summary, err := loop.RunTarget(ctx, target, binaryPath, seedPath)
		if err != nil {
			h.log.Error("target failed, continuing with next target", zap.String("target", target), zap.Error(err))
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
