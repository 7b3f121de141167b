package featurizer

import (
	"github.com/happyhackingspace/turnfeat/domain"
	"github.com/happyhackingspace/turnfeat/features"
	"github.com/happyhackingspace/turnfeat/interpreter"
	"github.com/happyhackingspace/turnfeat/internal/vectorizer"
	"github.com/happyhackingspace/turnfeat/tracker"
)

const stateFeaturizerOrigin = "SingleStateFeaturizer"

// SingleStateFeaturizer encodes one State into per-attribute features using
// one-hot indices derived from the domain, deferring free text to an
// interpreter.
type SingleStateFeaturizer struct {
	Indices     map[string]*vectorizer.DictVectorizer `json:"indices"`
	ActionTexts []string                              `json:"action_texts,omitempty"`
}

// NewSingleStateFeaturizer returns an unprepared featurizer.
func NewSingleStateFeaturizer() *SingleStateFeaturizer {
	return &SingleStateFeaturizer{Indices: map[string]*vectorizer.DictVectorizer{}}
}

// PrepareFromDomain builds the ordered feature indices for every one-hot
// attribute. Calling it again replaces the previous indices.
func (f *SingleStateFeaturizer) PrepareFromDomain(d *domain.Domain) {
	f.Indices = map[string]*vectorizer.DictVectorizer{
		features.Intent:     vectorizer.NewOrderedDictVectorizer(d.Intents),
		features.ActionName: vectorizer.NewOrderedDictVectorizer(d.ActionNamesOrTexts()),
		features.Entities:   vectorizer.NewOrderedDictVectorizer(d.Entities),
		features.Slots:      vectorizer.NewOrderedDictVectorizer(d.SlotStates()),
		features.ActiveLoop: vectorizer.NewOrderedDictVectorizer(d.Forms),
	}
	f.ActionTexts = append([]string(nil), d.ActionTexts...)
}

// Dimension returns the one-hot width of attr, 0 if unknown.
func (f *SingleStateFeaturizer) Dimension(attr string) int {
	if dv, ok := f.Indices[attr]; ok {
		return dv.VocabSize()
	}
	return 0
}

// EncodeState converts s into features. The user category is only encoded
// for turns that follow action_listen; earlier user input would otherwise be
// repeated in every bot turn.
func (f *SingleStateFeaturizer) EncodeState(s *tracker.State, interp interpreter.Interpreter) features.StateFeatures {
	if interp == nil {
		interp = interpreter.Noop{}
	}
	out := features.StateFeatures{}
	if s == nil {
		return out
	}

	if a := s.PrevAction; a != nil {
		msg := interpreter.Message{}
		setIf(msg, features.ActionName, a.ActionName)
		setIf(msg, features.ActionText, a.ActionText)
		f.extract(out, msg, interp, features.ActionName)
	}

	if u := s.User; u != nil && s.PrevActionIsListen() {
		msg := interpreter.Message{}
		setIf(msg, features.Intent, u.Intent)
		setIf(msg, features.Text, u.Text)
		f.extract(out, msg, interp, features.Intent)
		if len(u.Entities) > 0 {
			values := make(map[string]any, len(u.Entities))
			for _, e := range u.Entities {
				values[e] = 1.0
			}
			out[features.Entities] = []features.Features{f.oneHot(features.Entities, values)}
		}
	}

	if len(s.Slots) > 0 {
		values := make(map[string]any)
		for name, feat := range s.Slots {
			for i, v := range feat {
				values[domain.SlotFeatureName(name, i)] = v
			}
		}
		out[features.Slots] = []features.Features{f.oneHot(features.Slots, values)}
	}

	if l := s.ActiveLoop; l != nil && l.Name != "" {
		out[features.ActiveLoop] = []features.Features{f.oneHot(features.ActiveLoop, map[string]any{l.Name: 1.0})}
	}
	return out
}

// extract asks the interpreter for every attribute in msg and falls back to a
// one-hot encoding when it has nothing for the name attribute.
func (f *SingleStateFeaturizer) extract(out features.StateFeatures, msg interpreter.Message, interp interpreter.Interpreter, nameAttr string) {
	parsed := interp.FeaturizeMessage(msg)
	for attr := range msg {
		fs := parsed[attr]
		if len(fs) == 0 {
			continue
		}
		if attr == features.Intent || attr == features.ActionName {
			fs = toSentence(fs)
		}
		out[attr] = fs
	}
	if name, ok := msg[nameAttr]; ok {
		if _, done := out[nameAttr]; !done {
			out[nameAttr] = []features.Features{f.oneHot(nameAttr, map[string]any{name: 1.0})}
		}
	}
}

func (f *SingleStateFeaturizer) oneHot(attr string, values map[string]any) features.Features {
	dv, ok := f.Indices[attr]
	if !ok {
		dv = vectorizer.NewOrderedDictVectorizer(nil)
	}
	return features.NewSparseRow(dv.Transform(values), features.Sentence, attr, stateFeaturizerOrigin)
}

// toSentence replaces sparse sequence features with their per-column sum.
func toSentence(fs []features.Features) []features.Features {
	out := make([]features.Features, 0, len(fs))
	for _, feat := range fs {
		if feat.IsSparse() && feat.Kind == features.Sequence {
			out = append(out, features.NewSparseRow(feat.Sparse().SumRows(), features.Sentence, feat.Attribute, feat.Origin))
			continue
		}
		out = append(out, feat)
	}
	return out
}

func setIf(msg interpreter.Message, key, value string) {
	if value != "" {
		msg[key] = value
	}
}
