// Package interpreter turns the raw string attributes of a state category
// (intent, text, action name, action text) into numeric features.
package interpreter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/happyhackingspace/turnfeat/features"
	"github.com/happyhackingspace/turnfeat/internal/storage"
	"github.com/happyhackingspace/turnfeat/internal/textutil"
	"github.com/happyhackingspace/turnfeat/internal/vectorizer"
)

// FileName is the persisted interpreter file inside a model directory.
const FileName = "interpreter.json"

// Message is a sub-state's string attributes keyed by attribute name.
type Message map[string]string

// Interpreter featurizes messages. Attributes it has no features for are
// simply absent from the result.
type Interpreter interface {
	FeaturizeMessage(msg Message) features.StateFeatures
}

// Noop produces no features, leaving the state featurizer to fall back to
// one-hot encodings.
type Noop struct{}

// FeaturizeMessage implements Interpreter.
func (Noop) FeaturizeMessage(Message) features.StateFeatures { return features.StateFeatures{} }

// Config controls the bag-of-words interpreter.
type Config struct {
	Weighting      string `yaml:"weighting" json:"weighting"` // "count", "tfidf" or "none"
	NgramRange     [2]int `yaml:"ngram_range" json:"ngram_range"`
	MinDF          int    `yaml:"min_df" json:"min_df"`
	StopWords      bool   `yaml:"stop_words" json:"stop_words"`
	FeaturizeNames bool   `yaml:"featurize_names" json:"featurize_names"`
}

// DefaultConfig returns word-count features over unigrams.
func DefaultConfig() Config {
	return Config{Weighting: "count", NgramRange: [2]int{1, 1}, MinDF: 1}
}

// BagOfWords emits sparse sequence (one row per token) and sentence features
// for free-text attributes, and optionally for intent and action names.
type BagOfWords struct {
	Config Config                      `json:"config"`
	Count  *vectorizer.CountVectorizer `json:"count,omitempty"`
	Tfidf  *vectorizer.TfidfVectorizer `json:"tfidf,omitempty"`
}

type textVectorizer interface {
	FitKeep(corpus, keep []string)
	Transform(text string) vectorizer.SparseVector
	TransformSequence(text string) *vectorizer.SparseMatrix
	VocabSize() int
}

// NewBagOfWords creates an untrained interpreter.
func NewBagOfWords(cfg Config) *BagOfWords {
	var stop map[string]bool
	if cfg.StopWords {
		stop = vectorizer.EnglishStopWords()
	}
	b := &BagOfWords{Config: cfg}
	if cfg.Weighting == "tfidf" {
		b.Tfidf = vectorizer.NewTfidfVectorizer(cfg.NgramRange, cfg.MinDF, false, "word", stop)
	} else {
		b.Count = vectorizer.NewCountVectorizer(cfg.NgramRange, false, "word", cfg.MinDF)
		b.Count.StopWords = stop
	}
	return b
}

func (b *BagOfWords) vec() textVectorizer {
	if b.Tfidf != nil {
		return b.Tfidf
	}
	return b.Count
}

// Train fits the vocabulary on free texts and, when names are featurized,
// on intent and action names split into words. Name words always enter the
// vocabulary, whatever MinDF says.
func (b *BagOfWords) Train(texts, names []string) {
	var keep []string
	if b.Config.FeaturizeNames {
		for _, n := range names {
			keep = append(keep, nameToText(n))
		}
	}
	b.vec().FitKeep(texts, keep)
	slog.Debug("Interpreter trained", "weighting", b.Config.Weighting, "vocabulary", b.vec().VocabSize())
}

// VocabSize is the feature dimension of every emitted block.
func (b *BagOfWords) VocabSize() int {
	return b.vec().VocabSize()
}

// FeaturizeMessage implements Interpreter.
func (b *BagOfWords) FeaturizeMessage(msg Message) features.StateFeatures {
	out := features.StateFeatures{}
	if b.VocabSize() == 0 {
		return out
	}
	for _, attr := range []string{features.Text, features.ActionText} {
		if text := msg[attr]; text != "" {
			b.featurize(out, attr, text, true)
		}
	}
	if b.Config.FeaturizeNames {
		for _, attr := range []string{features.Intent, features.ActionName} {
			if name := msg[attr]; name != "" {
				b.featurize(out, attr, nameToText(name), false)
			}
		}
	}
	return out
}

func (b *BagOfWords) featurize(out features.StateFeatures, attr, text string, withSentence bool) {
	seq := b.vec().TransformSequence(text)
	if seq == nil {
		// names keep one width per attribute, even without a single token
		if !withSentence {
			out[attr] = []features.Features{features.NewZero(features.Sentence, attr, "BagOfWords", b.VocabSize(), true)}
		}
		return
	}
	fs := []features.Features{features.NewSparse(seq, features.Sequence, attr, "BagOfWords")}
	if withSentence {
		fs = append(fs, features.NewSparseRow(b.vec().Transform(text), features.Sentence, attr, "BagOfWords"))
	}
	out[attr] = fs
}

func nameToText(name string) string {
	words := textutil.SplitActionName(name)
	text := ""
	for i, w := range words {
		if i > 0 {
			text += " "
		}
		text += w
	}
	return text
}

// Save writes the interpreter to dir/interpreter.json.
func (b *BagOfWords) Save(dir string) error {
	return writeFile(dir, b)
}

// Save writes any interpreter to dir/interpreter.json. Interpreters other
// than BagOfWords are stored as weighting "none", which loads back as Noop
// and replaces whatever an earlier run left in dir.
func Save(dir string, in Interpreter) error {
	if b, ok := in.(*BagOfWords); ok {
		return b.Save(dir)
	}
	return writeFile(dir, BagOfWords{Config: Config{Weighting: "none"}})
}

func writeFile(dir string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal interpreter: %w", err)
	}
	return storage.WriteFileAtomic(filepath.Join(dir, FileName), data)
}

// Load reads dir/interpreter.json. A missing file yields Noop.
func Load(dir string) (Interpreter, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Warn("No interpreter persisted, text features disabled", "path", path)
		return Noop{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read interpreter: %w", err)
	}
	var b BagOfWords
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode interpreter: %w", err)
	}
	if b.Count == nil && b.Tfidf == nil {
		return Noop{}, nil
	}
	return &b, nil
}
