// Package modeldata assembles per-turn feature maps of many dialogues into
// masked, zero-filled groups ready for batching.
//
// Dialogues keep their own lengths until PadLabels or SentenceBatch pad
// them to a common number of turns.
package modeldata

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/happyhackingspace/turnfeat/features"
)

// TurnFeatures is the content of one attribute at one turn: either absent or
// a list of feature blocks.
type TurnFeatures struct {
	present bool
	feats   []features.Features
}

// Absent marks a turn without the attribute.
func Absent() TurnFeatures { return TurnFeatures{} }

// Present wraps the features of a turn. An empty list is still present.
func Present(fs []features.Features) TurnFeatures {
	return TurnFeatures{present: true, feats: fs}
}

// IsPresent reports whether the attribute occurred at this turn.
func (t TurnFeatures) IsPresent() bool { return t.present }

// Features returns the wrapped blocks, nil when absent.
func (t TurnFeatures) Features() []features.Features { return t.feats }

// AttributeFeatures maps attribute -> dialogue -> turn.
type AttributeFeatures map[string][][]TurnFeatures

// Attributes returns the attribute names in sorted order.
func (af AttributeFeatures) Attributes() []string {
	out := make([]string, 0, len(af))
	for k := range af {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SurfaceAttributes regroups dialogues of per-turn feature maps by
// attribute. Every attribute seen anywhere gets one list per dialogue, as
// long as that dialogue, with Absent where the turn lacks it.
func SurfaceAttributes(dialogues [][]features.StateFeatures) AttributeFeatures {
	names := make(map[string]bool)
	for _, dialogue := range dialogues {
		for _, turn := range dialogue {
			for attr := range turn {
				names[attr] = true
			}
		}
	}

	out := make(AttributeFeatures, len(names))
	for attr := range names {
		perDialogue := make([][]TurnFeatures, len(dialogues))
		for i, dialogue := range dialogues {
			turns := make([]TurnFeatures, len(dialogue))
			for j, turn := range dialogue {
				if fs, ok := turn[attr]; ok {
					turns[j] = Present(fs)
				}
			}
			perDialogue[i] = turns
		}
		out[attr] = perDialogue
	}
	return out
}

// CreateZeroFeatures returns one zero block per feature block of the first
// present turn that has blocks. It returns nil when there is none.
func CreateZeroFeatures(dialogues [][]TurnFeatures) []features.Features {
	for _, dialogue := range dialogues {
		for _, turn := range dialogue {
			if len(turn.feats) == 0 {
				continue
			}
			zero := make([]features.Features, len(turn.feats))
			for i, f := range turn.feats {
				zero[i] = f.Zero()
			}
			return zero
		}
	}
	return nil
}

// Group holds kind -> dialogue -> turn blocks of one storage type.
type Group map[features.Kind][][]features.Features

// AttributeData is the zero-filled form of one attribute.
type AttributeData struct {
	// Mask is 1 where the attribute was present, 0 where it was filled.
	Mask   [][]float64
	Dense  Group
	Sparse Group
}

// MapTrackerFeatures replaces absent turns with copies of zero and splits the
// blocks into dense and sparse groups by kind. Present blocks are passed
// through unchanged. A present turn without blocks is masked 1 but filled
// like an absent one, so every turn keeps its slot in the groups.
func MapTrackerFeatures(dialogues [][]TurnFeatures, zero []features.Features) AttributeData {
	data := AttributeData{
		Mask:   make([][]float64, len(dialogues)),
		Dense:  Group{},
		Sparse: Group{},
	}
	for i, dialogue := range dialogues {
		dense := map[features.Kind][]features.Features{}
		sparse := map[features.Kind][]features.Features{}
		mask := make([]float64, len(dialogue))
		for j, turn := range dialogue {
			fs := turn.feats
			if turn.IsPresent() {
				mask[j] = 1
			}
			if len(fs) == 0 {
				fs = make([]features.Features, len(zero))
				for k, z := range zero {
					fs[k] = z.Clone()
				}
			}
			for _, f := range fs {
				if f.IsSparse() {
					sparse[f.Kind] = append(sparse[f.Kind], f)
				} else {
					dense[f.Kind] = append(dense[f.Kind], f)
				}
			}
		}
		data.Mask[i] = mask
		appendGroup(data.Dense, dense, i, len(dialogues))
		appendGroup(data.Sparse, sparse, i, len(dialogues))
	}
	return data
}

func appendGroup(g Group, perDialogue map[features.Kind][]features.Features, i, n int) {
	for kind, fs := range perDialogue {
		if _, ok := g[kind]; !ok {
			g[kind] = make([][]features.Features, n)
		}
		g[kind][i] = fs
	}
}

// Data is the assembled form of a batch of dialogues.
type Data struct {
	Attributes map[string]AttributeData
	// TurnMask is 1 where at least one attribute was present.
	TurnMask [][]float64
	// Lengths are the dialogue lengths in turns.
	Lengths []int
	// ZeroFeatures are the padding templates used per attribute.
	ZeroFeatures map[string][]features.Features
}

// ConvertToData surfaces, zero-fills and masks every attribute. Zero
// templates from zero are reused when given, which keeps prediction batches
// shaped like the training batch; missing ones are derived from the data.
func ConvertToData(dialogues [][]features.StateFeatures, zero map[string][]features.Features) Data {
	surfaced := SurfaceAttributes(dialogues)
	data := Data{
		Attributes:   make(map[string]AttributeData, len(surfaced)),
		TurnMask:     make([][]float64, len(dialogues)),
		Lengths:      make([]int, len(dialogues)),
		ZeroFeatures: make(map[string][]features.Features, len(surfaced)),
	}
	for i, dialogue := range dialogues {
		data.Lengths[i] = len(dialogue)
		data.TurnMask[i] = make([]float64, len(dialogue))
	}
	for attr, fs := range zero {
		data.ZeroFeatures[attr] = fs
	}

	for _, attr := range surfaced.Attributes() {
		turns := surfaced[attr]
		z, ok := data.ZeroFeatures[attr]
		if !ok {
			z = CreateZeroFeatures(turns)
			data.ZeroFeatures[attr] = z
		}
		ad := MapTrackerFeatures(turns, z)
		data.Attributes[attr] = ad
		for i, mask := range ad.Mask {
			for j, m := range mask {
				if m > 0 {
					data.TurnMask[i][j] = 1
				}
			}
		}
	}
	return data
}

// PadLabels pads label id lists to the longest one with pad.
func PadLabels(labels [][]int, pad int) [][]int {
	longest := 0
	for _, l := range labels {
		longest = max(longest, len(l))
	}
	out := make([][]int, len(labels))
	for i, l := range labels {
		row := make([]int, longest)
		n := copy(row, l)
		for j := n; j < longest; j++ {
			row[j] = pad
		}
		out[i] = row
	}
	return out
}

// SentenceBatch densifies per-dialogue sentence blocks into one
// maxTurns x dim matrix per dialogue. Turns past a dialogue's end are zero
// rows. Dialogues are empty matrices when there is nothing to lay out.
func SentenceBatch(dialogues [][]features.Features) []*mat.Dense {
	maxTurns, dim := 0, 0
	for _, d := range dialogues {
		maxTurns = max(maxTurns, len(d))
		for _, f := range d {
			dim = max(dim, f.Cols())
		}
	}
	out := make([]*mat.Dense, len(dialogues))
	for i, d := range dialogues {
		if maxTurns == 0 || dim == 0 {
			out[i] = &mat.Dense{}
			continue
		}
		m := mat.NewDense(maxTurns, dim, nil)
		for j, f := range d {
			rows, cols := f.Dims()
			if rows == 0 || cols == 0 {
				continue
			}
			dense := f.ToDense()
			for c := range cols {
				m.Set(j, c, dense.At(0, c))
			}
		}
		out[i] = m
	}
	return out
}
