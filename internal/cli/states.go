package cli

import (
	"encoding/json"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/turnfeat"
	"github.com/happyhackingspace/turnfeat/featurizer"
	"github.com/happyhackingspace/turnfeat/tracker"
)

type trackerStates struct {
	SenderID string           `json:"sender_id"`
	States   []*tracker.State `json:"states"`
}

func (c *CLI) newStatesCommand() *cobra.Command {
	var dataFolder string
	var modelDir string

	cmd := &cobra.Command{
		Use:   "states",
		Short: "Print the prediction states of every tracker as JSON",
		Args:  cobra.NoArgs,
		Example: `  turnfeat states --data-folder data
  turnfeat states --data-folder data --model-dir models/policy`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, trackers, err := turnfeat.LoadData(dataFolder, false)
			if err != nil {
				return err
			}

			var states [][]*tracker.State
			if modelDir != "" {
				m, err := turnfeat.Load(modelDir)
				if err != nil {
					return err
				}
				states = m.PredictionStates(trackers, d)
			} else {
				cfg, err := turnfeat.LoadConfig(dataFolder)
				if err != nil {
					return err
				}
				strategy, err := featurizer.NewStrategy(cfg.Featurizer.Strategy, cfg.Featurizer.MaxHistory, cfg.Featurizer.Dedup())
				if err != nil {
					return err
				}
				states = strategy.PredictionStates(trackers, d)
			}
			slog.Debug("Prediction states created", "trackers", len(trackers))

			out := make([]trackerStates, len(trackers))
			for i, t := range trackers {
				out[i] = trackerStates{SenderID: t.SenderID, States: states[i]}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&dataFolder, "data-folder", "data", "Path to data folder with domain and trackers")
	cmd.Flags().StringVar(&modelDir, "model-dir", "", "Use the strategy persisted in this model directory")
	return cmd
}
