// Command covefuzz is the entrypoint: it resolves configuration, builds
// a logger, and runs the harness over every target under the configured
// binaries directory.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/covefuzz/covefuzz/internal/config"
	"github.com/covefuzz/covefuzz/internal/harness"
	"github.com/covefuzz/covefuzz/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	defaults := config.Defaults()

	cmd := &cobra.Command{
		Use:           "covefuzz",
		Short:         "Coverage-guided fuzzer for stdin-reading target binaries",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, v)
		},
	}

	config.BindFlags(cmd.Flags(), defaults)
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		// BindPFlags only fails on a programming error (nil flag set),
		// which would be caught immediately by any manual test run.
		panic(err)
	}

	return cmd
}

func runRoot(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := config.Resolve(v)
	if err != nil {
		return err
	}

	log := logging.New(cfg.LogLevel)
	defer log.Sync() //nolint:errcheck // best-effort flush on exit

	h := harness.New(cfg, log)
	summaries, err := h.Run(cmd.Context())
	if err != nil {
		return err
	}

	for _, s := range summaries {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: execs=%d coverage=%d crashes=%d unique_crashes=%d hangs=%d queue=%d forkserver=%t\n",
			s.Target, s.Execs, s.CoverageBits, s.Crashes, s.UniqueCrashes, s.Hangs, s.QueueSize, s.UsedForkserver)
	}

	return nil
}
