package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/turnfeat"
	"github.com/happyhackingspace/turnfeat/featurizer"
	"github.com/happyhackingspace/turnfeat/features"
)

func (c *CLI) newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "inspect <model-dir>",
		Short:   "Show the persisted featurizer configuration and dataset shapes",
		Args:    cobra.ExactArgs(1),
		Example: `  turnfeat inspect models/policy`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspect(cmd, args[0])
		},
	}
}

func inspect(cmd *cobra.Command, dir string) error {
	tf, err := featurizer.Load(dir)
	if err != nil {
		return err
	}
	if tf == nil {
		return fmt.Errorf("%w in %s", turnfeat.ErrNoFeaturizer, dir)
	}
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "strategy: %s\n", tf.Strategy.Name())
	if mh, ok := tf.Strategy.(*featurizer.MaxHistory); ok {
		fmt.Fprintf(w, "max_history: %d\n", mh.MaxHistory)
		fmt.Fprintf(w, "remove_duplicates: %t\n", mh.RemoveDuplicates)
	}
	if tf.StateFeaturizer != nil {
		fmt.Fprintln(w, "state features:")
		for _, attr := range []string{features.Intent, features.ActionName, features.Entities, features.Slots, features.ActiveLoop} {
			fmt.Fprintf(w, "  %-12s %d\n", attr, tf.StateFeaturizer.Dimension(attr))
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, turnfeat.DatasetFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var s turnfeat.Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode %s: %w", turnfeat.DatasetFile, err)
	}
	fmt.Fprintf(w, "dialogues: %d\n", s.Dialogues)
	fmt.Fprintln(w, "attributes:")
	for _, a := range s.Attributes {
		for _, b := range a.Blocks {
			fmt.Fprintf(w, "  %-12s %-8s %-6s cols=%d present_turns=%d\n", a.Name, b.Kind, b.Storage, b.Cols, a.PresentTurns)
		}
	}
	return nil
}
