package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sevigo/patch-warden/internal/core"
)

func TestPartition(t *testing.T) {
	fixes := []core.Fix{
		{ID: "high", Confidence: 0.95},
		{ID: "exact", Confidence: 0.8},
		{ID: "low", Confidence: 0.4},
		{ID: "zero", Confidence: 0},
	}

	auto, approval := Partition(fixes, 0.8)

	assert.Equal(t, []string{"high", "exact"}, ids(auto), "threshold is inclusive")
	assert.Equal(t, []string{"low", "zero"}, ids(approval))
}

func TestPartition_ZeroThresholdTakesEverything(t *testing.T) {
	fixes := []core.Fix{{ID: "a", Confidence: 0}, {ID: "b", Confidence: 1}}

	auto, approval := Partition(fixes, 0)

	assert.Len(t, auto, 2)
	assert.Empty(t, approval)
}

func TestPartition_PreservesOrder(t *testing.T) {
	fixes := []core.Fix{
		{ID: "c", Confidence: 0.9},
		{ID: "a", Confidence: 0.9},
		{ID: "b", Confidence: 0.9},
	}

	auto, _ := Partition(fixes, 0.5)

	assert.Equal(t, []string{"c", "a", "b"}, ids(auto))
}

func ids(fixes []core.Fix) []string {
	out := make([]string, 0, len(fixes))
	for _, f := range fixes {
		out = append(out, f.ID)
	}
	return out
}
