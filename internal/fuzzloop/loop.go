// Package fuzzloop composes the runner, mutator, coverage feedback, and
// crash triage into the per-target fuzzing lifecycle.
package fuzzloop

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/covefuzz/covefuzz/internal/config"
	"github.com/covefuzz/covefuzz/internal/corpus"
	"github.com/covefuzz/covefuzz/internal/detect"
	"github.com/covefuzz/covefuzz/internal/ferrors"
	"github.com/covefuzz/covefuzz/internal/invariant"
	"github.com/covefuzz/covefuzz/internal/metrics"
	"github.com/covefuzz/covefuzz/internal/mutate"
	"github.com/covefuzz/covefuzz/internal/report"
	"github.com/covefuzz/covefuzz/internal/runner"
	"github.com/covefuzz/covefuzz/internal/triage"
)

// Summary is the per-target result printed at loop end and rolled up by
// the harness across targets.
type Summary struct {
	Target         string
	Execs          uint64
	Elapsed        time.Duration
	CoverageBits   uint64
	Crashes        uint64
	UniqueCrashes  uint64
	Hangs          uint64
	QueueSize      uint64
	UsedForkserver bool
}

// Loop drives one target's lifecycle: detect format, build its mutator,
// start a runner, run the deterministic phase, then the random phase
// until the outer deadline, reporting novel crashes as they're found.
type Loop struct {
	cfg   config.Config
	log   *zap.Logger
	store *report.Store
}

// New builds a Loop. store is shared across every target the harness
// drives; cfg and log are resolved once at process start.
func New(cfg config.Config, log *zap.Logger, store *report.Store) *Loop {
	invariant.NotNil(store, "store")
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{cfg: cfg, log: log, store: store}
}

// RunTarget fuzzes one target against its seed file: read the seed,
// detect its format and build a mutator, run the deterministic corpus,
// then mutate and run randomly until the deadline, triaging and
// reporting novel crashes as they're found.
func (l *Loop) RunTarget(ctx context.Context, targetName, binaryPath, seedPath string) (Summary, error) {
	log := l.log.With(zap.String("target", targetName))

	// Step 1: read seed.
	seed, err := os.ReadFile(seedPath)
	if err != nil {
		return Summary{}, ferrors.Wrap(ferrors.CategorySeedRead, "read seed file", err)
	}

	// Step 2: detect format, construct mutator.
	format := detect.Bytes(seed)
	mutator := mutate.New(format, seed)
	log.Info("target detected", zap.String("format", string(format)), zap.Int("seed_len", len(seed)))

	// Step 3: start forkserver, fall back to subprocess on any failure.
	var r runner.Runner
	usedForkserver := false
	fs := runner.NewForkServer(log)
	if startErr := fs.Start(binaryPath, l.cfg.CoverageSize); startErr != nil {
		log.Warn("forkserver start failed, falling back to subprocess runner", zap.Error(startErr))
		r = runner.NewSubprocess(binaryPath)
	} else {
		r = fs
		usedForkserver = true
	}
	defer r.Close()

	queue := corpus.NewQueue(l.cfg.QueueCap, seed)
	coverage := corpus.NewCoverageTracker()
	dedup := triage.NewDedup()
	counters := metrics.NewTarget()
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))

	start := time.Now()

	// Step 4: deterministic phase.
	for _, input := range mutator.DeterministicInputs() {
		l.execOne(ctx, r, queue, coverage, dedup, counters, targetName, input)
	}
	log.Info("deterministic phase complete", zap.Uint64("execs", counters.Execs.Load()))

	// Step 5: random phase until the outer deadline.
	deadline := start.Add(l.cfg.OuterDeadline)
	lastProgress := time.Now()
	for time.Now().Before(deadline) {
		base := queue.Sample(rng)
		mb := mutator.Mutate(base)
		if rng.Float64() < l.cfg.MutateBytesProbability {
			mb = mutator.MutateBytes(mb)
		}
		l.execOne(ctx, r, queue, coverage, dedup, counters, targetName, mb)

		if time.Since(lastProgress) >= l.cfg.ProgressInterval {
			l.logProgress(log, counters, queue, coverage, start)
			lastProgress = time.Now()
		}
	}

	elapsed := time.Since(start)
	summary := Summary{
		Target:         targetName,
		Execs:          counters.Execs.Load(),
		Elapsed:        elapsed,
		CoverageBits:   uint64(coverage.Count()),
		Crashes:        counters.Crashes.Load(),
		UniqueCrashes:  counters.UniqueCrashes.Load(),
		Hangs:          counters.Hangs.Load(),
		QueueSize:      uint64(queue.Len()),
		UsedForkserver: usedForkserver,
	}
	log.Info("target summary",
		zap.Uint64("execs", summary.Execs), zap.Duration("elapsed", summary.Elapsed),
		zap.Uint64("coverage", summary.CoverageBits), zap.Uint64("crashes", summary.Crashes),
		zap.Uint64("unique_crashes", summary.UniqueCrashes), zap.Uint64("hangs", summary.Hangs),
		zap.Uint64("queue_size", summary.QueueSize),
	)
	return summary, nil
}

// execOne runs a single input through the target once: write input,
// send the run command, read the child pid, read exit status, update
// coverage, and triage/report a crash if one occurred.
func (l *Loop) execOne(ctx context.Context, r runner.Runner, queue *corpus.Queue, coverage *corpus.CoverageTracker, dedup *triage.Dedup, counters *metrics.Target, targetName string, input []byte) {
	r.ClearCoverage()

	result, err := r.RunOne(ctx, input, l.cfg.ExecTimeout)
	counters.Execs.Add(1)
	if err != nil {
		return
	}

	switch {
	case result.Hung:
		counters.Hangs.Add(1)
	case result.Crashed:
		counters.Crashes.Add(1)
		l.recordCrash(r, dedup, counters, targetName, result, input)
	default:
		l.considerForQueue(r, queue, coverage, counters, result, input)
	}
}

func (l *Loop) considerForQueue(r runner.Runner, queue *corpus.Queue, coverage *corpus.CoverageTracker, counters *metrics.Target, result runner.ExecResult, input []byte) {
	cov, hasCov := r.ReadCoverageIndices()
	var novel bool
	if hasCov {
		novel = coverage.ConsiderCoverage(cov)
	} else {
		sig := corpus.NewBehavioralSignature(result.ExitCode, result.Stdout, result.Stderr)
		novel = coverage.ConsiderSignature(sig)
	}
	if novel && queue.TryAdmit(input) {
		counters.QueueDepth.Store(uint64(queue.Len()))
	}
}

func (l *Loop) recordCrash(r runner.Runner, dedup *triage.Dedup, counters *metrics.Target, targetName string, result runner.ExecResult, input []byte) {
	var fp triage.Fingerprint
	if cov, ok := r.ReadCoverageIndices(); ok {
		fp = triage.FromCoverage(cov)
	} else {
		fp = triage.FromBehavior(result.Stdout, result.Stderr)
	}

	key := triage.Key{Signal: result.Signal, Fingerprint: fp}
	if !dedup.Admit(key) {
		return
	}
	counters.UniqueCrashes.Add(1)

	entry := triage.Entry{Signal: result.Signal, Fingerprint: fp, Input: input}
	l.log.Info("novel crash recorded", zap.String("target", targetName),
		zap.Int("signal", result.Signal), zap.String("signal_name", runner.SignalName(result.Signal)),
		zap.String("fingerprint_prefix", fp.Hex()[:8]))
	if err := l.store.Append(targetName, entry.Format()); err != nil {
		l.log.Error("failed to append crash report", zap.String("target", targetName), zap.Error(err))
	}
}

func (l *Loop) logProgress(log *zap.Logger, counters *metrics.Target, queue *corpus.Queue, coverage *corpus.CoverageTracker, start time.Time) {
	snap := counters.Snapshot()
	elapsed := time.Since(start)
	rate := float64(0)
	if elapsed.Seconds() > 0 {
		rate = float64(snap.Execs) / elapsed.Seconds()
	}
	covCount := coverage.Count()
	log.Info("progress",
		zap.Uint64("execs", snap.Execs), zap.Float64("exec_rate", rate),
		zap.Int("coverage", covCount),
		zap.Uint64("crashes", snap.Crashes), zap.Uint64("unique_crashes", snap.UniqueCrashes),
		zap.Uint64("hangs", snap.Hangs), zap.Int("queue_size", queue.Len()),
		zap.Duration("elapsed", elapsed),
	)
	fmt.Fprintf(os.Stdout, "execs=%d rate=%.1f/s coverage=%d crashes=%d unique_crashes=%d hangs=%d queue=%d elapsed=%s\n",
		snap.Execs, rate, covCount, snap.Crashes, snap.UniqueCrashes, snap.Hangs, queue.Len(), elapsed.Round(time.Second))
}
