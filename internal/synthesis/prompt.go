package synthesis

import (
	"fmt"
	"strings"

	"github.com/notebase-ai/notebase/internal/model"
)

const (
	StyleDefault       = "default"
	StyleLearningGuide = "learning_guide"
	StyleCustom        = "custom"
)

const groundedPrompt = `You are a meticulous research assistant. Answer the user's question using ONLY the numbered source material below. Every claim taken from a source must carry a bracketed citation like [1] or [3] referring to that source entry. Do not invent citations and do not cite entries you did not use. If the sources do not contain the answer, say so plainly instead of guessing.`

const learningGuidePrompt = `You are a patient tutor building a study guide. Using ONLY the numbered source material below, explain the topic step by step: start from the core idea, define terms on first use, and finish with a short recap. Cite the sources you draw on with bracketed numbers like [1]. If the sources do not cover something, say so rather than filling the gap yourself.`

const ungroundedPrompt = `You are a helpful assistant. No source material from this notebook matched the question, so answer from general knowledge, keep it brief, and open with a note that the answer is not grounded in the notebook's sources. Do not emit bracketed citations.`

const citationSuffix = ` Cite the numbered source entries you use with bracketed numbers like [1].`

// systemPrompt picks the instruction block for a style. A custom style uses
// the caller's prompt with the citation contract appended so downstream
// marker parsing keeps working.
func systemPrompt(style, customPrompt string, grounded bool) string {
	if !grounded {
		return ungroundedPrompt
	}
	switch style {
	case StyleLearningGuide:
		return learningGuidePrompt
	case StyleCustom:
		custom := strings.TrimSpace(customPrompt)
		if custom == "" {
			return groundedPrompt
		}
		return custom + citationSuffix
	default:
		return groundedPrompt
	}
}

// buildContext renders retrieved chunks as numbered entries. Entry i is
// cited in answers as [i], 1-based in retrieval order.
func buildContext(chunks []model.RetrievalResult) string {
	var sb strings.Builder
	sb.WriteString("Source material:\n\n")
	for i, c := range chunks {
		fmt.Fprintf(&sb, "[%d] (Source: %s)\n%s\n\n", i+1, c.SourceTitle, c.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func languageDirective(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ""
	}
	return fmt.Sprintf(" Respond in %s.", lang)
}
