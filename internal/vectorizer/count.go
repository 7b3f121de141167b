package vectorizer

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/happyhackingspace/turnfeat/internal/textutil"
)

// CountVectorizer converts text to token count vectors.
type CountVectorizer struct {
	Vocabulary map[string]int  `json:"vocabulary"`
	NgramRange [2]int          `json:"ngram_range"`
	Binary     bool            `json:"binary"`
	Analyzer   string          `json:"analyzer"` // "word" or "char_wb"
	MinDF      int             `json:"min_df"`
	StopWords  map[string]bool `json:"stop_words,omitempty"`
}

// NewCountVectorizer creates a CountVectorizer with default settings.
func NewCountVectorizer(ngramRange [2]int, binary bool, analyzer string, minDF int) *CountVectorizer {
	if analyzer == "" {
		analyzer = "word"
	}
	if minDF < 1 {
		minDF = 1
	}
	if ngramRange[0] < 1 {
		ngramRange = [2]int{1, 1}
	}
	if ngramRange[1] < ngramRange[0] {
		ngramRange[1] = ngramRange[0]
	}
	return &CountVectorizer{
		NgramRange: ngramRange,
		Binary:     binary,
		Analyzer:   analyzer,
		MinDF:      minDF,
	}
}

// tokens splits text into lowercase word tokens with stop words removed.
func (cv *CountVectorizer) tokens(text string) []string {
	raw := textutil.Tokenize(strings.ToLower(text))
	if len(cv.StopWords) == 0 {
		return raw
	}
	out := raw[:0]
	for _, t := range raw {
		if !cv.StopWords[t] {
			out = append(out, t)
		}
	}
	return out
}

// analyze extracts features from text based on the analyzer type.
func (cv *CountVectorizer) analyze(text string) []string {
	tokens := cv.tokens(text)
	if cv.Analyzer == "char_wb" {
		var result []string
		for _, token := range tokens {
			result = append(result, textutil.Ngrams(" "+token+" ", cv.NgramRange[0], cv.NgramRange[1])...)
		}
		return result
	}
	return textutil.TokenNgrams(tokens, cv.NgramRange[0], cv.NgramRange[1])
}

// Fit builds the vocabulary from a corpus.
func (cv *CountVectorizer) Fit(corpus []string) {
	cv.FitKeep(corpus, nil)
}

// FitKeep builds the vocabulary from corpus and keep. Terms of the keep
// documents enter the vocabulary regardless of MinDF.
func (cv *CountVectorizer) FitKeep(corpus, keep []string) {
	dfCounts := make(map[string]int)
	kept := make(map[string]bool)
	for i, doc := range append(append([]string(nil), corpus...), keep...) {
		seen := make(map[string]bool)
		for _, f := range cv.analyze(doc) {
			if i >= len(corpus) {
				kept[f] = true
			}
			if !seen[f] {
				dfCounts[f]++
				seen[f] = true
			}
		}
	}

	// Sort terms for deterministic ordering
	terms := make([]string, 0, len(dfCounts))
	for term, count := range dfCounts {
		if count >= cv.MinDF || kept[term] {
			terms = append(terms, term)
		}
	}
	sort.Strings(terms)
	cv.Vocabulary = make(map[string]int, len(terms))
	for i, term := range terms {
		cv.Vocabulary[term] = i
	}
}

// Transform converts a single document to a sparse vector.
func (cv *CountVectorizer) Transform(text string) SparseVector {
	return cv.countFeatures(cv.analyze(text))
}

// TransformSequence returns one row per token of text; n-grams spanning
// several tokens are not part of the sequence view. Returns nil when text
// has no tokens.
func (cv *CountVectorizer) TransformSequence(text string) *SparseMatrix {
	tokens := cv.tokens(text)
	if len(tokens) == 0 {
		return nil
	}
	m := &SparseMatrix{RowVecs: make([]SparseVector, len(tokens)), Cols: cv.VocabSize()}
	for i, tok := range tokens {
		var feats []string
		if cv.Analyzer == "char_wb" {
			feats = textutil.Ngrams(" "+tok+" ", cv.NgramRange[0], cv.NgramRange[1])
		} else {
			feats = []string{tok}
		}
		m.RowVecs[i] = cv.countFeatures(feats)
	}
	return m
}

func (cv *CountVectorizer) countFeatures(features []string) SparseVector {
	sv := NewSparseVector(cv.VocabSize())
	counts := make(map[int]float64)
	for _, f := range features {
		if idx, ok := cv.Vocabulary[f]; ok {
			counts[idx]++
		}
	}
	for idx, count := range counts {
		if cv.Binary {
			sv.Set(idx, 1.0)
		} else {
			sv.Set(idx, count)
		}
	}
	return sv.Sorted()
}

// VocabSize returns the vocabulary size.
func (cv *CountVectorizer) VocabSize() int {
	return len(cv.Vocabulary)
}

// MarshalJSON implements json.Marshaler.
func (cv *CountVectorizer) MarshalJSON() ([]byte, error) {
	type Alias CountVectorizer
	return json.Marshal((*Alias)(cv))
}

// UnmarshalJSON implements json.Unmarshaler.
func (cv *CountVectorizer) UnmarshalJSON(data []byte) error {
	type Alias CountVectorizer
	return json.Unmarshal(data, (*Alias)(cv))
}
