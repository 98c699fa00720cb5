package artifact

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/notebase-ai/notebase/internal/ai"
	"github.com/notebase-ai/notebase/internal/model"
	appErr "github.com/notebase-ai/notebase/internal/pkg/errors"
)

const mindmapPrompt = `You build concept mindmaps from source material. Reply with a single JSON object and nothing else, using this shape:
{"title": "...", "nodes": [{"id": "n1", "label": "..."}], "edges": [{"source": "n1", "target": "n2"}]}
Rules: the graph must be a tree with exactly one root node, every other node has exactly one parent, at most %d nodes, labels are short phrases taken from the material.%s%s`

type mindmapGenerator struct {
	maxNodes int
}

func (g *mindmapGenerator) Type() model.ArtifactType {
	return model.ArtifactMindmap
}

func (g *mindmapGenerator) Generate(ctx context.Context, gen ai.IGenerator, in Input) (json.RawMessage, error) {
	maxNodes := g.maxNodes
	if maxNodes <= 0 {
		maxNodes = 40
	}
	system := fmt.Sprintf(mindmapPrompt, maxNodes, focusLine(in.Params.FocusTopic), languageLine(in.Language))
	raw, err := gen.Generate(ctx, []ai.ChatMessage{
		{Role: ai.RoleSystem, Content: system},
		{Role: ai.RoleUser, Content: fmt.Sprintf("Notebook: %s\n\n%s", in.NotebookTitle, in.Context)},
	}, ai.GenerateOptions{})
	if err != nil {
		return nil, err
	}
	var result model.MindmapResult
	if err := decodeInto(raw, &result); err != nil {
		return nil, err
	}
	if result.Title == "" {
		result.Title = in.Params.Title
	}
	if err := ValidateMindmap(&result, maxNodes); err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

// ValidateMindmap checks the tree shape: one root, every other node exactly
// one incoming edge, no cycles, all edge endpoints resolve to declared nodes.
func ValidateMindmap(m *model.MindmapResult, maxNodes int) error {
	if len(m.Nodes) == 0 {
		return fmt.Errorf("%w: mindmap has no nodes", appErr.ErrJobValidation)
	}
	if maxNodes > 0 && len(m.Nodes) > maxNodes {
		return fmt.Errorf("%w: mindmap has %d nodes, limit %d", appErr.ErrJobValidation, len(m.Nodes), maxNodes)
	}
	nodes := make(map[string]struct{}, len(m.Nodes))
	for _, n := range m.Nodes {
		if n.ID == "" || n.Label == "" {
			return fmt.Errorf("%w: node with empty id or label", appErr.ErrJobValidation)
		}
		if _, dup := nodes[n.ID]; dup {
			return fmt.Errorf("%w: duplicate node id %q", appErr.ErrJobValidation, n.ID)
		}
		nodes[n.ID] = struct{}{}
	}

	parent := make(map[string]string, len(m.Edges))
	children := make(map[string][]string, len(m.Edges))
	for _, e := range m.Edges {
		if _, ok := nodes[e.Source]; !ok {
			return fmt.Errorf("%w: edge source %q is not a node", appErr.ErrJobValidation, e.Source)
		}
		if _, ok := nodes[e.Target]; !ok {
			return fmt.Errorf("%w: edge target %q is not a node", appErr.ErrJobValidation, e.Target)
		}
		if _, has := parent[e.Target]; has {
			return fmt.Errorf("%w: node %q has multiple parents", appErr.ErrJobValidation, e.Target)
		}
		parent[e.Target] = e.Source
		children[e.Source] = append(children[e.Source], e.Target)
	}

	var root string
	for _, n := range m.Nodes {
		if _, has := parent[n.ID]; !has {
			if root != "" {
				return fmt.Errorf("%w: multiple roots (%q, %q)", appErr.ErrJobValidation, root, n.ID)
			}
			root = n.ID
		}
	}
	if root == "" {
		return fmt.Errorf("%w: mindmap has no root", appErr.ErrJobValidation)
	}

	// every node must be reachable from the root, which with the
	// one-parent rule also rules out cycles
	visited := map[string]struct{}{}
	stack := []string{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		stack = append(stack, children[id]...)
	}
	if len(visited) != len(m.Nodes) {
		return fmt.Errorf("%w: %d nodes unreachable from root", appErr.ErrJobValidation, len(m.Nodes)-len(visited))
	}
	return nil
}
