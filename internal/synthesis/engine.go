package synthesis

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/notebase-ai/notebase/internal/ai"
	"github.com/notebase-ai/notebase/internal/model"
	appErr "github.com/notebase-ai/notebase/internal/pkg/errors"
)

// excerptLen bounds the chunk excerpt stored with each citation.
const excerptLen = 200

type Request struct {
	Question     string
	Chunks       []model.RetrievalResult
	History      []model.Message
	Style        string
	CustomPrompt string
	Language     string
}

// Result is the outcome of one synthesis run. Interrupted means the stream
// failed after the first delta: Text holds everything produced up to the
// failure and Err carries the cause for the transport layer to report.
type Result struct {
	Text        string
	Citations   []model.Citation
	Grounded    bool
	Interrupted bool
	Err         error
}

type Engine struct {
	generator ai.IGenerator
	retry     ai.RetryConfig
	opts      ai.GenerateOptions
}

func NewEngine(generator ai.IGenerator, retry ai.RetryConfig, opts ai.GenerateOptions) *Engine {
	return &Engine{generator: generator, retry: retry, opts: opts}
}

// Synthesize streams an answer over the retrieved chunks, forwarding each
// delta to fn. Transient provider errors are retried only until the first
// delta has been emitted; after that a failure ends the stream and the
// partial result is returned with Interrupted set.
func (e *Engine) Synthesize(ctx context.Context, req Request, fn ai.StreamFunc) (*Result, error) {
	start := time.Now()
	grounded := len(req.Chunks) > 0
	defer logDuration(ctx, start, grounded)

	msgs := e.buildMessages(req, grounded)
	tracker := newCitationTracker()

	emitted := false
	var text string
	var streamFailure error
	err := ai.WithRetry(ctx, e.retry, "synthesis stream", func() error {
		var streamErr error
		text, streamErr = e.generator.GenerateStream(ctx, msgs, e.opts, func(delta string) error {
			emitted = true
			tracker.feed(delta)
			return fn(delta)
		})
		if streamErr != nil && emitted {
			// mid-stream failure is not retryable, the client already saw text
			streamFailure = streamErr
			return nil
		}
		return streamErr
	})
	if err != nil {
		return nil, err
	}
	if text == "" && streamFailure == nil {
		return nil, appErr.ErrSynthesisProvider
	}

	res := &Result{
		Text:     text,
		Grounded: grounded,
	}
	if grounded {
		res.Citations = resolveCitations(tracker.indices(), req.Chunks)
	}
	if streamFailure != nil {
		res.Interrupted = true
		res.Err = streamFailure
	}
	return res, nil
}

func (e *Engine) buildMessages(req Request, grounded bool) []ai.ChatMessage {
	system := systemPrompt(req.Style, req.CustomPrompt, grounded) + languageDirective(req.Language)
	msgs := make([]ai.ChatMessage, 0, len(req.History)+3)
	msgs = append(msgs, ai.ChatMessage{Role: ai.RoleSystem, Content: system})
	if grounded {
		msgs = append(msgs, ai.ChatMessage{Role: ai.RoleSystem, Content: buildContext(req.Chunks)})
	}
	for _, h := range req.History {
		role := ai.RoleUser
		if h.Role == model.RoleAssistant {
			role = ai.RoleAssistant
		}
		msgs = append(msgs, ai.ChatMessage{Role: role, Content: h.Content})
	}
	msgs = append(msgs, ai.ChatMessage{Role: ai.RoleUser, Content: req.Question})
	return msgs
}

// resolveCitations maps marker values back to the retrieved chunks. Marker
// [i] refers to context entry i, 1-based in retrieval order; out-of-range
// markers are dropped.
func resolveCitations(indices []int, chunks []model.RetrievalResult) []model.Citation {
	out := make([]model.Citation, 0, len(indices))
	for _, idx := range indices {
		if idx < 1 || idx > len(chunks) {
			continue
		}
		c := chunks[idx-1]
		excerpt := c.Text
		if len(excerpt) > excerptLen {
			cut := excerptLen
			for cut > 0 && excerpt[cut]&0xC0 == 0x80 {
				cut--
			}
			excerpt = excerpt[:cut]
		}
		out = append(out, model.Citation{
			Index:    idx,
			ChunkID:  c.ChunkID,
			SourceID: c.SourceID,
			Excerpt:  excerpt,
		})
	}
	return out
}

func logDuration(ctx context.Context, start time.Time, grounded bool) {
	logutil.GetLogger(ctx).Debug("synthesis finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("grounded", grounded))
}
