package vectorizer

import "fmt"

// DictVectorizer converts feature dicts to sparse vectors.
type DictVectorizer struct {
	FeatureNames []string       `json:"feature_names"`
	FeatureIndex map[string]int `json:"feature_index"`
}

// NewOrderedDictVectorizer builds a vectorizer whose columns follow names in
// the given order. Repeated names keep their first position.
func NewOrderedDictVectorizer(names []string) *DictVectorizer {
	dv := &DictVectorizer{
		FeatureNames: make([]string, 0, len(names)),
		FeatureIndex: make(map[string]int, len(names)),
	}
	for _, n := range names {
		if _, ok := dv.FeatureIndex[n]; ok {
			continue
		}
		dv.FeatureIndex[n] = len(dv.FeatureNames)
		dv.FeatureNames = append(dv.FeatureNames, n)
	}
	return dv
}

// Transform converts a feature dict to a sparse vector. Unknown features are
// ignored, as are zero values.
func (dv *DictVectorizer) Transform(d map[string]any) SparseVector {
	sv := NewSparseVector(len(dv.FeatureNames))
	for k, v := range d {
		idx, ok := dv.FeatureIndex[dv.featureKey(k, v)]
		if !ok {
			continue
		}
		if val := dv.featureValue(v); val != 0 {
			sv.Set(idx, val)
		}
	}
	return sv.Sorted()
}

// VocabSize returns the number of features.
func (dv *DictVectorizer) VocabSize() int {
	return len(dv.FeatureNames)
}

// featureKey returns the feature key for a given name-value pair.
// String values create compound keys like "name=value"; numeric and bool
// values use the name directly.
func (dv *DictVectorizer) featureKey(name string, value any) string {
	if v, ok := value.(string); ok {
		return fmt.Sprintf("%s=%s", name, v)
	}
	return name
}

// featureValue returns the numeric value for a feature.
func (dv *DictVectorizer) featureValue(value any) float64 {
	switch v := value.(type) {
	case bool:
		if v {
			return 1.0
		}
		return 0.0
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	case float64:
		return v
	default:
		return 1.0
	}
}
