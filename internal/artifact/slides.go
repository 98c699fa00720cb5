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

const slideDeckPrompt = `You turn source material into a concise slide deck. Reply with a single JSON object and nothing else, using this shape:
{"title": "...", "slides": [{"title": "...", "bullets": ["..."], "notes": "..."}]}
Rules: at most %d slides, 3 to 5 bullets per slide, one idea per bullet, notes are optional speaker notes.%s%s`

const maxBulletsPerSlide = 8

type slideDeckGenerator struct {
	maxSlides int
}

func (g *slideDeckGenerator) Type() model.ArtifactType {
	return model.ArtifactSlideDeck
}

func (g *slideDeckGenerator) Generate(ctx context.Context, gen ai.IGenerator, in Input) (json.RawMessage, error) {
	maxSlides := g.maxSlides
	if maxSlides <= 0 {
		maxSlides = 20
	}
	system := fmt.Sprintf(slideDeckPrompt, maxSlides, focusLine(in.Params.FocusTopic), languageLine(in.Language))
	raw, err := gen.Generate(ctx, []ai.ChatMessage{
		{Role: ai.RoleSystem, Content: system},
		{Role: ai.RoleUser, Content: fmt.Sprintf("Notebook: %s\n\n%s", in.NotebookTitle, in.Context)},
	}, ai.GenerateOptions{})
	if err != nil {
		return nil, err
	}
	var result model.SlideDeckResult
	if err := decodeInto(raw, &result); err != nil {
		return nil, err
	}
	if result.Title == "" {
		result.Title = in.Params.Title
	}
	result.Theme = in.Params.Theme
	if err := ValidateSlideDeck(&result, maxSlides); err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func ValidateSlideDeck(d *model.SlideDeckResult, maxSlides int) error {
	if len(d.Slides) == 0 {
		return fmt.Errorf("%w: deck has no slides", appErr.ErrJobValidation)
	}
	if maxSlides > 0 && len(d.Slides) > maxSlides {
		return fmt.Errorf("%w: deck has %d slides, limit %d", appErr.ErrJobValidation, len(d.Slides), maxSlides)
	}
	for i, s := range d.Slides {
		if strings.TrimSpace(s.Title) == "" {
			return fmt.Errorf("%w: slide %d has an empty title", appErr.ErrJobValidation, i+1)
		}
		if len(s.Bullets) == 0 {
			return fmt.Errorf("%w: slide %d has no bullets", appErr.ErrJobValidation, i+1)
		}
		if len(s.Bullets) > maxBulletsPerSlide {
			return fmt.Errorf("%w: slide %d has %d bullets", appErr.ErrJobValidation, i+1, len(s.Bullets))
		}
		for _, b := range s.Bullets {
			if strings.TrimSpace(b) == "" {
				return fmt.Errorf("%w: slide %d has an empty bullet", appErr.ErrJobValidation, i+1)
			}
		}
	}
	return nil
}
