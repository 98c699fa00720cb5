package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/notebase-ai/notebase/internal/ai"
	"github.com/notebase-ai/notebase/internal/model"
	appErr "github.com/notebase-ai/notebase/internal/pkg/errors"
)

// Input is the material one generation run works from. Context is the
// rendered chunk material of the job's source scope.
type Input struct {
	NotebookTitle string
	Context       string
	Params        model.JobParams
	Language      string
}

// Generator produces one artifact type. Generate returns the validated
// payload; a structurally invalid model response surfaces as
// ErrJobValidation so the worker can decide whether to re-prompt.
type Generator interface {
	Type() model.ArtifactType
	Generate(ctx context.Context, gen ai.IGenerator, in Input) (json.RawMessage, error)
}

type Limits struct {
	MaxMindmapNodes int
	MaxSlides       int
}

// NewGenerators returns the registry of artifact builders keyed by type.
func NewGenerators(limits Limits) map[model.ArtifactType]Generator {
	return map[model.ArtifactType]Generator{
		model.ArtifactMindmap:     &mindmapGenerator{maxNodes: limits.MaxMindmapNodes},
		model.ArtifactSlideDeck:   &slideDeckGenerator{maxSlides: limits.MaxSlides},
		model.ArtifactInfographic: &infographicGenerator{},
	}
}

// extractJSON pulls the JSON object out of a model response that may wrap it
// in markdown fences or prose.
func extractJSON(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: response contains no JSON object", appErr.ErrJobValidation)
	}
	return s[start : end+1], nil
}

func decodeInto(raw string, dst interface{}) error {
	body, err := extractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrJobValidation, err)
	}
	return nil
}

func languageLine(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ""
	}
	return fmt.Sprintf("\nWrite all labels and text in %s.", lang)
}

func focusLine(topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ""
	}
	return fmt.Sprintf("\nFocus on: %s.", topic)
}
