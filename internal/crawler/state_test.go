package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from    State
		failed  bool
		hasNext bool
		want    State
	}{
		{StateStart, false, false, StateFetching},
		{StateFetching, false, false, StateExtracting},
		{StateFetching, true, false, StateFailed},
		{StateExtracting, false, true, StateWriting},
		{StateExtracting, true, true, StateFailed},
		{StateWriting, false, true, StateFetching},
		{StateWriting, false, false, StateDone},
		{StateWriting, true, true, StateFailed},
		{StateDone, false, true, StateDone},
		{StateFailed, false, true, StateFailed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Next(tt.from, tt.failed, tt.hasNext), "%s failed=%v hasNext=%v", tt.from, tt.failed, tt.hasNext)
	}
}

func TestNextOnlyTakesLegalTransitions(t *testing.T) {
	t.Parallel()

	for _, s := range []State{StateStart, StateFetching, StateExtracting, StateWriting} {
		for _, failed := range []bool{false, true} {
			for _, hasNext := range []bool{false, true} {
				to := Next(s, failed, hasNext)
				assert.True(t, s.CanTransition(to), "%s -> %s", s, to)
			}
		}
	}
	assert.False(t, StateStart.CanTransition(StateFailed))
	assert.False(t, StateDone.CanTransition(StateFetching))
	assert.True(t, StateDone.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateWriting.Terminal())
}
