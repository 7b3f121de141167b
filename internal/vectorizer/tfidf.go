package vectorizer

import (
	"math"
)

// TfidfVectorizer converts text to TF-IDF weighted, L2-normalized vectors.
type TfidfVectorizer struct {
	CountVec *CountVectorizer `json:"count_vec"`
	IDF      []float64        `json:"idf"`
}

// NewTfidfVectorizer creates a TfidfVectorizer.
func NewTfidfVectorizer(ngramRange [2]int, minDF int, binary bool, analyzer string, stopWords map[string]bool) *TfidfVectorizer {
	cv := NewCountVectorizer(ngramRange, binary, analyzer, minDF)
	cv.StopWords = stopWords
	return &TfidfVectorizer{CountVec: cv}
}

// Fit computes IDF values from a corpus.
func (tv *TfidfVectorizer) Fit(corpus []string) {
	tv.FitKeep(corpus, nil)
}

// FitKeep computes IDF values over corpus and keep, keeping every term of
// the keep documents in the vocabulary.
func (tv *TfidfVectorizer) FitKeep(corpus, keep []string) {
	tv.CountVec.FitKeep(corpus, keep)
	corpus = append(append([]string(nil), corpus...), keep...)

	nDocs := float64(len(corpus))
	vocabSize := tv.CountVec.VocabSize()
	tv.IDF = make([]float64, vocabSize)

	df := make([]float64, vocabSize)
	for _, doc := range corpus {
		sv := tv.CountVec.Transform(doc)
		for _, idx := range sv.Indices {
			df[idx]++
		}
	}

	// sklearn smooth IDF: log((1 + n) / (1 + df)) + 1
	for i := 0; i < vocabSize; i++ {
		tv.IDF[i] = math.Log((1+nDocs)/(1+df[i])) + 1
	}
}

// Transform converts a single document to a TF-IDF sparse vector.
func (tv *TfidfVectorizer) Transform(text string) SparseVector {
	sv := tv.CountVec.Transform(text)
	tv.weigh(&sv)
	return sv
}

// TransformSequence returns one TF-IDF row per token.
func (tv *TfidfVectorizer) TransformSequence(text string) *SparseMatrix {
	m := tv.CountVec.TransformSequence(text)
	if m == nil {
		return nil
	}
	for i := range m.RowVecs {
		tv.weigh(&m.RowVecs[i])
	}
	return m
}

func (tv *TfidfVectorizer) weigh(sv *SparseVector) {
	for i, idx := range sv.Indices {
		if idx < len(tv.IDF) {
			sv.Values[i] *= tv.IDF[idx]
		}
	}
	// L2 normalize (sklearn default)
	if norm := sv.L2Norm(); norm > 0 {
		for i := range sv.Values {
			sv.Values[i] /= norm
		}
	}
}

// VocabSize returns the vocabulary size.
func (tv *TfidfVectorizer) VocabSize() int {
	return tv.CountVec.VocabSize()
}

// EnglishStopWords returns a small English stop word set suited to short
// chat utterances; pronouns and negations are kept since they carry intent.
func EnglishStopWords() map[string]bool {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "been", "by", "for", "from",
		"is", "it", "its", "of", "on", "or", "so", "than", "that", "the", "then",
		"there", "these", "this", "those", "to", "was", "were", "will", "with",
	}
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
