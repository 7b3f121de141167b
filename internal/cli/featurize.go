package cli

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/turnfeat"
	"github.com/happyhackingspace/turnfeat/internal/metrics"
	"github.com/happyhackingspace/turnfeat/internal/progress"
	"github.com/happyhackingspace/turnfeat/internal/storage"
)

func (c *CLI) newFeaturizeCommand() *cobra.Command {
	var (
		dataFolder  string
		strategy    string
		maxHistory  int
		noDedup     bool
		metricsPath string
		skipInvalid bool
	)

	cmd := &cobra.Command{
		Use:   "featurize <outdir>",
		Short: "Featurize training trackers and persist the featurizer",
		Args:  cobra.ExactArgs(1),
		Example: `  turnfeat featurize models/policy --data-folder data
  turnfeat featurize models/policy --strategy full_dialogue
  turnfeat featurize models/policy --max-history 3 --no-dedup
  turnfeat featurize models/policy --metrics - -v`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outDir := args[0]
			cfg, err := turnfeat.LoadConfig(dataFolder)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("strategy") {
				cfg.Featurizer.Strategy = strategy
			}
			if flags.Changed("max-history") {
				cfg.Featurizer.MaxHistory = maxHistory
			}
			if noDedup {
				dedup := false
				cfg.Featurizer.RemoveDuplicates = &dedup
			}
			cfg.SkipInvalid = skipInvalid

			if bar := progress.NewForFile(os.Stderr, "Processed trackers", c.silent); !bar.Disabled() {
				cfg.Hooks.Progress = bar
			}
			var rec *metrics.Recorder
			if metricsPath != "" {
				rec = metrics.NewRecorder()
				cfg.Hooks.Observer = rec
			}

			slog.Info("Featurizing trackers", "data-folder", dataFolder, "output", outDir, "strategy", cfg.Featurizer.Strategy)
			start := time.Now()
			ds, err := turnfeat.Featurize(dataFolder, cfg)
			if err != nil {
				return err
			}
			if err := ds.Save(outDir); err != nil {
				return err
			}
			slog.Debug("Featurization completed", "duration", time.Since(start))

			if rec != nil {
				rec.ObserveRun(time.Since(start))
				return writeMetrics(cmd, rec, metricsPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataFolder, "data-folder", "data", "Path to training data folder")
	cmd.Flags().StringVar(&strategy, "strategy", "", "Featurization strategy: max_history or full_dialogue")
	cmd.Flags().IntVar(&maxHistory, "max-history", 0, "Number of turns per training example, 0 for the whole history")
	cmd.Flags().BoolVar(&noDedup, "no-dedup", false, "Keep duplicate training examples")
	cmd.Flags().StringVar(&metricsPath, "metrics", "", "Write Prometheus metrics to this file, - for stdout")
	cmd.Flags().BoolVar(&skipInvalid, "skip-invalid", false, "Skip unreadable tracker files instead of failing")
	return cmd
}

func writeMetrics(cmd *cobra.Command, rec *metrics.Recorder, path string) error {
	if path == "-" {
		return rec.WriteText(cmd.OutOrStdout())
	}
	var buf bytes.Buffer
	if err := rec.WriteText(&buf); err != nil {
		return err
	}
	if err := storage.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	slog.Info("Metrics written", "path", path)
	return nil
}
