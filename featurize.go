package turnfeat

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/happyhackingspace/turnfeat/domain"
	"github.com/happyhackingspace/turnfeat/featurizer"
	"github.com/happyhackingspace/turnfeat/interpreter"
	"github.com/happyhackingspace/turnfeat/internal/storage"
	"github.com/happyhackingspace/turnfeat/modeldata"
	"github.com/happyhackingspace/turnfeat/tracker"
)

// LabelPad fills label rows of full-dialogue datasets up to the longest
// dialogue.
const LabelPad = -1

// Config holds configuration for featurization. It mirrors config.yml in
// the data folder.
type Config struct {
	Featurizer  FeaturizerConfig   `yaml:"featurizer"`
	Interpreter interpreter.Config `yaml:"interpreter"`

	// Hooks observe the strategy loop. They never change the result.
	Hooks featurizer.Hooks `yaml:"-"`
	// SkipInvalid drops unreadable tracker files instead of failing.
	SkipInvalid bool `yaml:"-"`
}

// FeaturizerConfig selects and parameterizes the strategy.
type FeaturizerConfig struct {
	Strategy         string `yaml:"strategy"`
	MaxHistory       int    `yaml:"max_history"`
	RemoveDuplicates *bool  `yaml:"remove_duplicates"`
}

// Dedup reports whether duplicate examples are removed. Unset means yes.
func (c FeaturizerConfig) Dedup() bool {
	return c.RemoveDuplicates == nil || *c.RemoveDuplicates
}

// DefaultConfig returns max-history featurization over 5 turns with word
// count text features.
func DefaultConfig() *Config {
	return &Config{
		Featurizer: FeaturizerConfig{
			Strategy:   featurizer.MaxHistoryName,
			MaxHistory: 5,
		},
		Interpreter: interpreter.DefaultConfig(),
	}
}

// LoadConfig returns DefaultConfig overlaid with the data folder's
// config.yml, if any.
func LoadConfig(dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	found, err := storage.NewStorage(dataDir).GetConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("turnfeat: %w", err)
	}
	if found {
		slog.Debug("Loaded config", "folder", dataDir)
	}
	return cfg, nil
}

// Dataset is the result of featurizing a data folder.
type Dataset struct {
	Data    modeldata.Data
	Labels  [][]int
	Domain  *domain.Domain
	Summary Summary

	model *Model
}

// Model returns the prepared featurizer and interpreter.
func (ds *Dataset) Model() *Model { return ds.model }

// Featurize loads the domain and trackers of dataDir and featurizes them
// for training. A nil config is read from dataDir.
func Featurize(dataDir string, cfg *Config) (*Dataset, error) {
	if cfg == nil {
		var err error
		if cfg, err = LoadConfig(dataDir); err != nil {
			return nil, err
		}
	}

	d, trackers, err := LoadData(dataDir, cfg.SkipInvalid)
	if err != nil {
		return nil, err
	}
	return FeaturizeTrackers(trackers, d, cfg)
}

// LoadData reads the domain and the trackers of a data folder. Duplicate
// tracker files are dropped.
func LoadData(dataDir string, skipInvalid bool) (*domain.Domain, []*tracker.DialogueStateTracker, error) {
	store := storage.NewStorage(dataDir)
	d, err := store.GetDomain()
	if err != nil {
		return nil, nil, fmt.Errorf("turnfeat: %w", err)
	}
	opts := storage.DefaultIterOptions()
	opts.SkipInvalid = skipInvalid
	trackers, err := store.IterTrackers(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("turnfeat: %w", err)
	}
	if len(trackers) == 0 {
		return nil, nil, fmt.Errorf("turnfeat: no trackers found in %s", dataDir)
	}
	return d, trackers, nil
}

// FeaturizeTrackers featurizes already loaded trackers.
func FeaturizeTrackers(trackers []*tracker.DialogueStateTracker, d *domain.Domain, cfg *Config) (*Dataset, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	start := time.Now()

	strategy, err := featurizer.NewStrategy(cfg.Featurizer.Strategy, cfg.Featurizer.MaxHistory, cfg.Featurizer.Dedup())
	if err != nil {
		return nil, fmt.Errorf("turnfeat: %w", err)
	}
	tf := featurizer.New(featurizer.NewSingleStateFeaturizer(), strategy)
	tf.Hooks = cfg.Hooks

	interp := trainInterpreter(cfg.Interpreter, trackers, d)

	feats, labels, err := tf.FeaturizeTrackers(trackers, d, interp)
	if err != nil {
		return nil, fmt.Errorf("turnfeat: %w", err)
	}
	if strategy.Name() == featurizer.FullDialogueName {
		labels = modeldata.PadLabels(labels, LabelPad)
	}
	data := modeldata.ConvertToData(feats, nil)

	slog.Info("Featurized trackers",
		"trackers", len(trackers),
		"examples", len(feats),
		"strategy", strategy.Name(),
		"duration", time.Since(start),
	)
	return &Dataset{
		Data:    data,
		Labels:  labels,
		Domain:  d,
		Summary: summarize(strategy.Name(), data, labels),
		model:   &Model{Featurizer: tf, Interpreter: interp, zero: data.ZeroFeatures},
	}, nil
}

// trainInterpreter fits a bag-of-words interpreter on the user and bot
// texts of the trackers, or returns Noop when text features are disabled.
func trainInterpreter(cfg interpreter.Config, trackers []*tracker.DialogueStateTracker, d *domain.Domain) interpreter.Interpreter {
	if cfg.Weighting == "none" {
		return interpreter.Noop{}
	}
	texts := append([]string(nil), d.ActionTexts...)
	for _, t := range trackers {
		for _, ev := range t.AppliedEvents() {
			switch e := ev.(type) {
			case tracker.UserUttered:
				if e.Text != "" {
					texts = append(texts, e.Text)
				}
			case tracker.ActionExecuted:
				if e.ActionText != "" {
					texts = append(texts, e.ActionText)
				}
			}
		}
	}
	names := append(append([]string(nil), d.Intents...), d.ActionNamesOrTexts()...)

	b := interpreter.NewBagOfWords(cfg)
	b.Train(texts, names)
	if b.VocabSize() == 0 {
		return interpreter.Noop{}
	}
	return b
}

// Save writes featurizer.json, interpreter.json and dataset.json to dir.
func (ds *Dataset) Save(dir string) error {
	if err := ds.model.Featurizer.Persist(dir); err != nil {
		return fmt.Errorf("turnfeat: %w", err)
	}
	if err := interpreter.Save(dir, ds.model.Interpreter); err != nil {
		return fmt.Errorf("turnfeat: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, DatasetFile), ds.Summary); err != nil {
		return fmt.Errorf("turnfeat: %w", err)
	}
	slog.Info("Dataset saved", "dir", dir)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
