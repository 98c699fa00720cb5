package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/notebase-ai/notebase/internal/model"
	appErr "github.com/notebase-ai/notebase/internal/pkg/errors"
)

// RenderDocument turns a validated artifact result into a markdown document
// for storage and export.
func RenderDocument(artifactType model.ArtifactType, raw json.RawMessage) ([]byte, error) {
	switch artifactType {
	case model.ArtifactMindmap:
		var m model.MindmapResult
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return renderMindmap(&m), nil
	case model.ArtifactSlideDeck:
		var d model.SlideDeckResult
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return renderSlideDeck(&d), nil
	case model.ArtifactInfographic:
		var r model.InfographicResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		return renderInfographic(&r), nil
	}
	return nil, fmt.Errorf("%w: unknown artifact type %q", appErr.ErrInvalid, artifactType)
}

// renderMindmap writes the tree as an indented outline, children under their
// parent.
func renderMindmap(m *model.MindmapResult) []byte {
	labels := make(map[string]string, len(m.Nodes))
	for _, n := range m.Nodes {
		labels[n.ID] = n.Label
	}
	children := map[string][]string{}
	hasParent := map[string]bool{}
	for _, e := range m.Edges {
		children[e.Source] = append(children[e.Source], e.Target)
		hasParent[e.Target] = true
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", m.Title)
	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		fmt.Fprintf(&buf, "%s- %s\n", strings.Repeat("  ", depth), labels[id])
		for _, child := range children[id] {
			walk(child, depth+1)
		}
	}
	for _, n := range m.Nodes {
		if !hasParent[n.ID] {
			walk(n.ID, 0)
		}
	}
	return buf.Bytes()
}

func renderSlideDeck(d *model.SlideDeckResult) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n", d.Title)
	for _, slide := range d.Slides {
		fmt.Fprintf(&buf, "\n---\n\n## %s\n\n", slide.Title)
		for _, b := range slide.Bullets {
			fmt.Fprintf(&buf, "- %s\n", b)
		}
		if slide.Notes != "" {
			fmt.Fprintf(&buf, "\n> %s\n", slide.Notes)
		}
	}
	return buf.Bytes()
}

func renderInfographic(r *model.InfographicResult) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n_template: %s_\n", r.Title, r.TemplateType)
	for _, section := range r.Sections {
		fmt.Fprintf(&buf, "\n## %s\n\n", section.Heading)
		for _, item := range section.Items {
			fmt.Fprintf(&buf, "- **%s**: %s\n", item.Label, item.Value)
		}
	}
	return buf.Bytes()
}
