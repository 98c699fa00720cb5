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

const infographicPrompt = `You distill source material into an infographic layout. Reply with a single JSON object and nothing else, using this shape:
{"title": "...", "template_type": "%s", "sections": [{"heading": "...", "items": [{"label": "...", "value": "..."}]}]}
Rules: 2 to 6 sections, every item pairs a short label with a short value, keep it factual to the material.%s%s`

var infographicTemplates = map[string]struct{}{
	"timeline":   {},
	"comparison": {},
	"stats":      {},
	"process":    {},
}

const defaultInfographicTemplate = "stats"

type infographicGenerator struct{}

func (g *infographicGenerator) Type() model.ArtifactType {
	return model.ArtifactInfographic
}

func (g *infographicGenerator) Generate(ctx context.Context, gen ai.IGenerator, in Input) (json.RawMessage, error) {
	template := strings.TrimSpace(in.Params.TemplateType)
	if template == "" {
		template = defaultInfographicTemplate
	}
	if _, ok := infographicTemplates[template]; !ok {
		return nil, fmt.Errorf("%w: unknown template type %q", appErr.ErrInvalid, template)
	}
	system := fmt.Sprintf(infographicPrompt, template, focusLine(in.Params.FocusTopic), languageLine(in.Language))
	raw, err := gen.Generate(ctx, []ai.ChatMessage{
		{Role: ai.RoleSystem, Content: system},
		{Role: ai.RoleUser, Content: fmt.Sprintf("Notebook: %s\n\n%s", in.NotebookTitle, in.Context)},
	}, ai.GenerateOptions{})
	if err != nil {
		return nil, err
	}
	var result model.InfographicResult
	if err := decodeInto(raw, &result); err != nil {
		return nil, err
	}
	if result.Title == "" {
		result.Title = in.Params.Title
	}
	result.TemplateType = template
	if err := ValidateInfographic(&result); err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func ValidateInfographic(r *model.InfographicResult) error {
	if len(r.Sections) == 0 {
		return fmt.Errorf("%w: infographic has no sections", appErr.ErrJobValidation)
	}
	for i, s := range r.Sections {
		if strings.TrimSpace(s.Heading) == "" {
			return fmt.Errorf("%w: section %d has an empty heading", appErr.ErrJobValidation, i+1)
		}
		if len(s.Items) == 0 {
			return fmt.Errorf("%w: section %d has no items", appErr.ErrJobValidation, i+1)
		}
		for _, item := range s.Items {
			if strings.TrimSpace(item.Label) == "" {
				return fmt.Errorf("%w: section %d has an item without a label", appErr.ErrJobValidation, i+1)
			}
		}
	}
	return nil
}
