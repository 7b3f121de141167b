package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, r *Recorder, name, strategy string) float64 {
	t.Helper()
	families, err := r.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "strategy" && l.GetValue() == strategy {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()
	r.TrackerProcessed("max_history")
	r.TrackerProcessed("max_history")
	r.ExampleCreated("max_history")
	r.DuplicateSkipped("max_history")
	r.ExampleCreated("full_dialogue")

	assert.Equal(t, 2.0, counterValue(t, r, "turnfeat_trackers_processed_total", "max_history"))
	assert.Equal(t, 1.0, counterValue(t, r, "turnfeat_examples_created_total", "max_history"))
	assert.Equal(t, 1.0, counterValue(t, r, "turnfeat_examples_created_total", "full_dialogue"))
	assert.Equal(t, 1.0, counterValue(t, r, "turnfeat_duplicates_skipped_total", "max_history"))
	assert.Equal(t, 0.0, counterValue(t, r, "turnfeat_duplicates_skipped_total", "full_dialogue"))
}

func TestWriteText(t *testing.T) {
	r := NewRecorder()
	r.ExampleCreated("max_history")
	r.ObserveRun(20 * time.Millisecond)

	var sb strings.Builder
	require.NoError(t, r.WriteText(&sb))
	out := sb.String()
	assert.Contains(t, out, `turnfeat_examples_created_total{strategy="max_history"} 1`)
	assert.Contains(t, out, "turnfeat_featurize_duration_seconds_count 1")
}
