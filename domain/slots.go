package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// SlotType selects how a slot value is turned into features.
type SlotType string

const (
	SlotText        SlotType = "text"
	SlotBool        SlotType = "bool"
	SlotCategorical SlotType = "categorical"
	SlotFloat       SlotType = "float"
	SlotList        SlotType = "list"
	SlotAny         SlotType = "any"
)

// Slot describes one slot of the domain.
type Slot struct {
	Name                  string   `yaml:"-" json:"name"`
	Type                  SlotType `yaml:"type" json:"type"`
	Values                []string `yaml:"values,omitempty" json:"values,omitempty"`
	MinValue              float64  `yaml:"min_value" json:"min_value"`
	MaxValue              *float64 `yaml:"max_value,omitempty" json:"max_value,omitempty"`
	InitialValue          any      `yaml:"initial_value,omitempty" json:"initial_value,omitempty"`
	InfluenceConversation *bool    `yaml:"influence_conversation,omitempty" json:"influence_conversation,omitempty"`
}

func (s Slot) featurized() bool {
	if s.InfluenceConversation != nil && !*s.InfluenceConversation {
		return false
	}
	return s.Type != SlotAny
}

// FeatureDimensionality is the length of the vector AsFeature returns.
func (s Slot) FeatureDimensionality() int {
	if !s.featurized() {
		return 0
	}
	switch s.Type {
	case SlotBool:
		return 2
	case SlotCategorical:
		return len(s.Values)
	default:
		return 1
	}
}

// AsFeature converts a slot value to its feature vector. A nil value is
// the unset slot.
func (s Slot) AsFeature(value any) []float64 {
	dim := s.FeatureDimensionality()
	out := make([]float64, dim)
	if dim == 0 || value == nil {
		return out
	}
	switch s.Type {
	case SlotText:
		out[0] = 1
	case SlotBool:
		out[0] = 1
		if truthy(value) {
			out[1] = 1
		}
	case SlotCategorical:
		v := strings.ToLower(fmt.Sprint(value))
		for i, cand := range s.Values {
			if strings.ToLower(cand) == v {
				out[i] = 1
				break
			}
		}
	case SlotFloat:
		f, ok := toFloat(value)
		if !ok {
			return out
		}
		maxValue := 1.0
		if s.MaxValue != nil {
			maxValue = *s.MaxValue
		}
		if maxValue <= s.MinValue {
			return out
		}
		f = min(max(f, s.MinValue), maxValue)
		out[0] = (f - s.MinValue) / (maxValue - s.MinValue)
	case SlotList:
		if l, ok := value.([]any); ok && len(l) > 0 {
			out[0] = 1
		} else if l, ok := value.([]string); ok && len(l) > 0 {
			out[0] = 1
		}
	}
	return out
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.ToLower(t))
		return err == nil && b
	}
	f, ok := toFloat(v)
	return ok && f != 0
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}
