package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notebase-ai/notebase/internal/model"
)

func TestFingerprintStableUnderNormalization(t *testing.T) {
	a := Fingerprint(model.ArtifactMindmap, model.JobParams{
		Title:     "Deck ",
		SourceIDs: []string{"s2", "s1", "s2", " s1"},
	})
	b := Fingerprint(model.ArtifactMindmap, model.JobParams{
		Title:     "Deck",
		SourceIDs: []string{"s1", "s2"},
	})
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprintDistinguishesRequests(t *testing.T) {
	base := model.JobParams{SourceIDs: []string{"s1"}}
	mindmap := Fingerprint(model.ArtifactMindmap, base)
	slides := Fingerprint(model.ArtifactSlideDeck, base)
	assert.NotEqual(t, mindmap, slides)

	other := Fingerprint(model.ArtifactMindmap, model.JobParams{SourceIDs: []string{"s1"}, FocusTopic: "x"})
	assert.NotEqual(t, mindmap, other)
}

func TestNormalizeParamsSortsAndDedupes(t *testing.T) {
	p := NormalizeParams(model.JobParams{SourceIDs: []string{"b", "a", "b", ""}})
	assert.Equal(t, []string{"a", "b"}, p.SourceIDs)
}
