// Package featurizer turns dialogue trackers into per-turn feature maps and
// label ids for policy training, and into state sequences for prediction.
package featurizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/happyhackingspace/turnfeat/domain"
	"github.com/happyhackingspace/turnfeat/features"
	"github.com/happyhackingspace/turnfeat/interpreter"
	"github.com/happyhackingspace/turnfeat/internal/storage"
	"github.com/happyhackingspace/turnfeat/tracker"
)

// FileName is the persisted featurizer file inside a model directory.
const FileName = "featurizer.json"

// ErrNoStateFeaturizer is returned when featurizing without an encoder.
var ErrNoStateFeaturizer = errors.New("state featurizer is not set, create the tracker featurizer with a SingleStateFeaturizer")

// TrackerFeaturizer composes a Strategy with a SingleStateFeaturizer.
type TrackerFeaturizer struct {
	StateFeaturizer *SingleStateFeaturizer
	Strategy        Strategy
	Hooks           Hooks
}

// New creates a tracker featurizer. A nil strategy means max history with
// no window and deduplication on.
func New(sf *SingleStateFeaturizer, strategy Strategy) *TrackerFeaturizer {
	if strategy == nil {
		strategy = NewMaxHistory(0, true)
	}
	return &TrackerFeaturizer{StateFeaturizer: sf, Strategy: strategy}
}

// TrainingStatesAndActions runs the strategy without encoding.
func (tf *TrackerFeaturizer) TrainingStatesAndActions(trackers []*tracker.DialogueStateTracker, d *domain.Domain) ([][]*tracker.State, [][]string, error) {
	return tf.Strategy.TrainingStatesAndActions(trackers, d, tf.Hooks)
}

// PredictionStates runs the strategy's prediction slicing without encoding.
func (tf *TrackerFeaturizer) PredictionStates(trackers []*tracker.DialogueStateTracker, d *domain.Domain) [][]*tracker.State {
	return tf.Strategy.PredictionStates(trackers, d)
}

// FeaturizeTrackers encodes training trackers. It returns one feature map
// per state of every example and the label ids of every example.
func (tf *TrackerFeaturizer) FeaturizeTrackers(trackers []*tracker.DialogueStateTracker, d *domain.Domain, interp interpreter.Interpreter) ([][]features.StateFeatures, [][]int, error) {
	if tf.StateFeaturizer == nil {
		return nil, nil, ErrNoStateFeaturizer
	}
	start := time.Now()
	tf.StateFeaturizer.PrepareFromDomain(d)

	states, actions, err := tf.TrainingStatesAndActions(trackers, d)
	if err != nil {
		return nil, nil, err
	}
	labels, err := ConvertLabelsToIDs(actions, d)
	if err != nil {
		return nil, nil, err
	}
	feats := tf.featurizeStates(states, interp)
	slog.Debug("Featurized trackers", "trackers", len(trackers), "examples", len(feats), "duration", time.Since(start))
	return feats, labels, nil
}

// CreateStateFeatures encodes trackers for prediction. The state featurizer
// must already be prepared, usually by loading a persisted featurizer.
func (tf *TrackerFeaturizer) CreateStateFeatures(trackers []*tracker.DialogueStateTracker, d *domain.Domain, interp interpreter.Interpreter) ([][]features.StateFeatures, error) {
	if tf.StateFeaturizer == nil {
		return nil, ErrNoStateFeaturizer
	}
	return tf.featurizeStates(tf.PredictionStates(trackers, d), interp), nil
}

func (tf *TrackerFeaturizer) featurizeStates(trackersAsStates [][]*tracker.State, interp interpreter.Interpreter) [][]features.StateFeatures {
	out := make([][]features.StateFeatures, len(trackersAsStates))
	for i, states := range trackersAsStates {
		out[i] = make([]features.StateFeatures, len(states))
		for j, s := range states {
			out[i][j] = tf.StateFeaturizer.EncodeState(s, interp)
		}
	}
	return out
}

// ConvertLabelsToIDs maps action identifiers to domain indices.
func ConvertLabelsToIDs(trackersAsActions [][]string, d *domain.Domain) ([][]int, error) {
	out := make([][]int, len(trackersAsActions))
	for i, actions := range trackersAsActions {
		ids := make([]int, len(actions))
		for j, a := range actions {
			id, err := d.IndexForAction(a)
			if err != nil {
				return nil, err
			}
			ids[j] = id
		}
		out[i] = ids
	}
	return out, nil
}

type persisted struct {
	Strategy         string                 `json:"strategy"`
	MaxHistory       int                    `json:"max_history,omitempty"`
	RemoveDuplicates bool                   `json:"remove_duplicates,omitempty"`
	StateFeaturizer  *SingleStateFeaturizer `json:"state_featurizer,omitempty"`
}

// Persist writes dir/featurizer.json, creating dir if needed.
func (tf *TrackerFeaturizer) Persist(dir string) error {
	p := persisted{Strategy: tf.Strategy.Name(), StateFeaturizer: tf.StateFeaturizer}
	if mh, ok := tf.Strategy.(*MaxHistory); ok {
		p.MaxHistory = mh.MaxHistory
		p.RemoveDuplicates = mh.RemoveDuplicates
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal featurizer: %w", err)
	}
	path := filepath.Join(dir, FileName)
	if err := storage.WriteFileAtomic(path, data); err != nil {
		return err
	}
	slog.Debug("Featurizer persisted", "path", path)
	return nil
}

// Load reads dir/featurizer.json. A missing file is logged and yields a nil
// featurizer without an error.
func Load(dir string) (*TrackerFeaturizer, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Error("Couldn't load featurizer for policy, file doesn't exist", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read featurizer: %w", err)
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode featurizer: %w", err)
	}
	strategy, err := NewStrategy(p.Strategy, p.MaxHistory, p.RemoveDuplicates)
	if err != nil {
		return nil, err
	}
	return New(p.StateFeaturizer, strategy), nil
}
