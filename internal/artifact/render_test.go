package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notebase-ai/notebase/internal/model"
)

func TestRenderMindmapOutline(t *testing.T) {
	m := &model.MindmapResult{
		Title: "Topic",
		Nodes: []model.MindmapNode{
			{ID: "r", Label: "Root"},
			{ID: "a", Label: "Child A"},
			{ID: "b", Label: "Grandchild B"},
		},
		Edges: []model.MindmapEdge{
			{Source: "r", Target: "a"},
			{Source: "a", Target: "b"},
		},
	}
	out := string(renderMindmap(m))
	assert.Contains(t, out, "# Topic")
	assert.Contains(t, out, "- Root\n  - Child A\n    - Grandchild B\n")
}

func TestRenderSlideDeck(t *testing.T) {
	d := &model.SlideDeckResult{
		Title: "Deck",
		Slides: []model.Slide{
			{Title: "Intro", Bullets: []string{"one", "two"}, Notes: "speak slowly"},
		},
	}
	out := string(renderSlideDeck(d))
	assert.Contains(t, out, "## Intro")
	assert.Contains(t, out, "- one\n- two\n")
	assert.Contains(t, out, "> speak slowly")
}

func TestRenderInfographic(t *testing.T) {
	r := &model.InfographicResult{
		Title:        "Stats",
		TemplateType: "stats",
		Sections: []model.InfographicSection{
			{Heading: "Numbers", Items: []model.InfographicItem{{Label: "Total", Value: "42"}}},
		},
	}
	out := string(renderInfographic(r))
	assert.Contains(t, out, "## Numbers")
	assert.Contains(t, out, "- **Total**: 42")
}
