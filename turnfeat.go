// Package turnfeat converts dialogue trackers into padded, masked feature
// batches for training a dialogue policy, and slices live trackers for
// prediction.
//
//	ds, _ := turnfeat.Featurize("data", nil)
//	_ = ds.Save("models/policy")
//
//	m, _ := turnfeat.Load("models/policy")
//	batch, _ := m.PredictionData(trackers, d)
package turnfeat

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/happyhackingspace/turnfeat/domain"
	"github.com/happyhackingspace/turnfeat/featurizer"
	"github.com/happyhackingspace/turnfeat/features"
	"github.com/happyhackingspace/turnfeat/interpreter"
	"github.com/happyhackingspace/turnfeat/internal/storage"
	"github.com/happyhackingspace/turnfeat/modeldata"
	"github.com/happyhackingspace/turnfeat/tracker"
)

// DatasetFile is the dataset summary written next to the featurizer.
const DatasetFile = "dataset.json"

// ErrNoFeaturizer is returned by Load when the model directory holds no
// persisted featurizer.
var ErrNoFeaturizer = errors.New("no featurizer persisted")

// Model is a prepared featurizer with its interpreter.
type Model struct {
	Featurizer  *featurizer.TrackerFeaturizer
	Interpreter interpreter.Interpreter

	zero map[string][]features.Features
}

// Load reads a model directory written by Dataset.Save.
func Load(dir string) (*Model, error) {
	tf, err := featurizer.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("turnfeat: %w", err)
	}
	if tf == nil {
		return nil, fmt.Errorf("turnfeat: %w in %s", ErrNoFeaturizer, dir)
	}
	interp, err := interpreter.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("turnfeat: %w", err)
	}
	m := &Model{Featurizer: tf, Interpreter: interp}

	data, err := os.ReadFile(filepath.Join(dir, DatasetFile))
	switch {
	case err == nil:
		var s Summary
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("turnfeat: decode %s: %w", DatasetFile, err)
		}
		m.zero = s.zeroFeatures()
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("turnfeat: %w", err)
	}
	return m, nil
}

// PredictionStates slices trackers the way the persisted strategy does.
func (m *Model) PredictionStates(trackers []*tracker.DialogueStateTracker, d *domain.Domain) [][]*tracker.State {
	return m.Featurizer.PredictionStates(trackers, d)
}

// PredictionData encodes trackers for prediction and assembles them with
// the padding templates of the training dataset.
func (m *Model) PredictionData(trackers []*tracker.DialogueStateTracker, d *domain.Domain) (modeldata.Data, error) {
	feats, err := m.Featurizer.CreateStateFeatures(trackers, d, m.Interpreter)
	if err != nil {
		return modeldata.Data{}, fmt.Errorf("turnfeat: %w", err)
	}
	return modeldata.ConvertToData(feats, m.zero), nil
}

// Summary is the JSON description of a featurized dataset.
type Summary struct {
	Strategy   string             `json:"strategy"`
	Dialogues  int                `json:"dialogues"`
	Lengths    []int              `json:"lengths"`
	Labels     [][]int            `json:"labels"`
	TurnMask   [][]float64        `json:"turn_mask"`
	Attributes []AttributeSummary `json:"attributes"`
}

// AttributeSummary describes the blocks of one attribute.
type AttributeSummary struct {
	Name         string         `json:"name"`
	PresentTurns int            `json:"present_turns"`
	Blocks       []BlockSummary `json:"blocks"`
}

// BlockSummary is the padding shape of one feature block.
type BlockSummary struct {
	Kind    features.Kind `json:"kind"`
	Storage string        `json:"storage"`
	Cols    int           `json:"cols"`
	Origin  string        `json:"origin"`
}

func (s Summary) zeroFeatures() map[string][]features.Features {
	out := make(map[string][]features.Features, len(s.Attributes))
	for _, a := range s.Attributes {
		zero := make([]features.Features, len(a.Blocks))
		for i, b := range a.Blocks {
			zero[i] = features.NewZero(b.Kind, a.Name, b.Origin, b.Cols, b.Storage == "sparse")
		}
		out[a.Name] = zero
	}
	return out
}

func summarize(strategy string, data modeldata.Data, labels [][]int) Summary {
	s := Summary{
		Strategy:  strategy,
		Dialogues: len(data.Lengths),
		Lengths:   data.Lengths,
		Labels:    labels,
		TurnMask:  data.TurnMask,
	}
	for _, name := range sortedKeys(data.ZeroFeatures) {
		a := AttributeSummary{Name: name}
		for _, mask := range data.Attributes[name].Mask {
			for _, m := range mask {
				if m > 0 {
					a.PresentTurns++
				}
			}
		}
		for _, z := range data.ZeroFeatures[name] {
			st := "dense"
			if z.IsSparse() {
				st = "sparse"
			}
			a.Blocks = append(a.Blocks, BlockSummary{Kind: z.Kind, Storage: st, Cols: z.Cols(), Origin: z.Origin})
		}
		s.Attributes = append(s.Attributes, a)
	}
	return s
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return storage.WriteFileAtomic(path, data)
}
