package synthesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCitationTrackerBasic(t *testing.T) {
	tr := newCitationTracker()
	tr.feed("The mitochondria [1] is the powerhouse [2] of the cell [1].")
	assert.Equal(t, []int{1, 2}, tr.indices())
}

func TestCitationTrackerSplitAcrossDeltas(t *testing.T) {
	tr := newCitationTracker()
	tr.feed("as shown [")
	tr.feed("1")
	tr.feed("2] earlier")
	assert.Equal(t, []int{12}, tr.indices())
}

func TestCitationTrackerBracketSplitBeforeNumber(t *testing.T) {
	tr := newCitationTracker()
	tr.feed("see [")
	tr.feed("3]")
	assert.Equal(t, []int{3}, tr.indices())
}

func TestCitationTrackerIgnoresNonNumeric(t *testing.T) {
	tr := newCitationTracker()
	tr.feed("array[i] and [note] and [] but [4] counts")
	assert.Equal(t, []int{4}, tr.indices())
}

func TestCitationTrackerTrailingBracketNeverCompletes(t *testing.T) {
	tr := newCitationTracker()
	tr.feed("dangling [5")
	assert.Empty(t, tr.indices())
}

func TestCitationTrackerMultiplePerDelta(t *testing.T) {
	tr := newCitationTracker()
	tr.feed("[3][1]")
	tr.feed(" [3] again")
	assert.Equal(t, []int{3, 1}, tr.indices())
}
