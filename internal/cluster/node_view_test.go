package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeViewInSequence(t *testing.T) {
	v := &NodeView{}
	assert.True(t, v.Update(1))
	assert.True(t, v.Update(2))
	assert.True(t, v.Update(3))
	assert.Equal(t, uint64(3), v.Baseline())
	assert.Equal(t, uint64(3), v.Latest())
}

func TestNodeViewGapThenFill(t *testing.T) {
	v := &NodeView{}
	assert.True(t, v.Update(1))
	// 2 is lost in transit; 3 arrives first.
	assert.False(t, v.Update(3))
	assert.Equal(t, uint64(1), v.Baseline())
	assert.Equal(t, uint64(3), v.Latest())
	// 2 arrives late and closes the hole up to 3.
	assert.True(t, v.Update(2))
	assert.Equal(t, uint64(3), v.Baseline())
}

func TestNodeViewRedelivery(t *testing.T) {
	v := &NodeView{}
	v.Update(1)
	v.Update(2)
	assert.False(t, v.Update(1), "re-delivered sequence must not advance anything")
	assert.Equal(t, uint64(2), v.Baseline())
	assert.Equal(t, uint64(2), v.Latest())
}

func TestNodeViewStartsWithGap(t *testing.T) {
	v := &NodeView{}
	assert.False(t, v.Update(5))
	assert.Equal(t, uint64(0), v.Baseline())
	assert.Equal(t, uint64(5), v.Latest())
}

// Property from the synchronization contract: after any sequence of
// updates, the baseline equals the largest b with 1..b all supplied, and
// never exceeds the latest.
func TestNodeViewBaselineInvariant(t *testing.T) {
	tests := []struct {
		name         string
		updates      []uint64
		wantBaseline uint64
	}{
		{"dense", []uint64{1, 2, 3, 4}, 4},
		{"reordered", []uint64{2, 1, 4, 3}, 4},
		{"hole remains", []uint64{1, 2, 5, 6}, 2},
		{"never started", []uint64{7}, 0},
		{"duplicates", []uint64{1, 1, 2, 2, 3}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &NodeView{}
			for _, n := range tt.updates {
				v.Update(n)
			}
			assert.Equal(t, tt.wantBaseline, v.Baseline())
			assert.LessOrEqual(t, v.Baseline(), v.Latest())
		})
	}
}
