package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/notebase-ai/notebase/internal/model"
	appErr "github.com/notebase-ai/notebase/internal/pkg/errors"
)

const (
	defaultWindowChars     = 1000
	defaultOverlapFraction = 0.1
	defaultMaxSourceBytes  = 4 << 20
)

type Config struct {
	WindowChars     int
	OverlapFraction float64
	MaxSourceBytes  int
}

// Piece is one window of the source text. Text is always an exact substring
// of the input, Start/End are its byte offsets, so the original text can be
// reconstructed by stitching consecutive pieces on their overlap.
type Piece struct {
	Ordinal    int
	Start      int
	End        int
	Text       string
	TokenCount int
}

type Chunker struct {
	cfg Config
}

func New(cfg Config) *Chunker {
	if cfg.WindowChars <= 0 {
		cfg.WindowChars = defaultWindowChars
	}
	if cfg.OverlapFraction <= 0 || cfg.OverlapFraction >= 0.5 {
		cfg.OverlapFraction = defaultOverlapFraction
	}
	if cfg.MaxSourceBytes <= 0 {
		cfg.MaxSourceBytes = defaultMaxSourceBytes
	}
	return &Chunker{cfg: cfg}
}

// Split cuts src into overlapping pieces. Cuts prefer blank lines, then
// sentence ends, then newlines inside the back half of the window, and never
// land inside a fenced code block or table when the source is markdown.
func (c *Chunker) Split(src string, kind model.SourceKind) ([]Piece, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("%w: empty source text", appErr.ErrIngestion)
	}
	if len(src) > c.cfg.MaxSourceBytes {
		return nil, fmt.Errorf("%w: %w: %d bytes exceeds limit %d",
			appErr.ErrIngestion, appErr.ErrSourceTooLarge, len(src), c.cfg.MaxSourceBytes)
	}

	var spans []span
	if kind == model.SourceKindMarkdown {
		spans = protectedSpans([]byte(src))
	}

	window := c.cfg.WindowChars
	overlap := int(float64(window) * c.cfg.OverlapFraction)

	var pieces []Piece
	start, lastEnd := 0, 0
	for {
		end := start + window
		if end >= len(src) {
			pieces = append(pieces, c.piece(src, len(pieces), start, len(src)))
			break
		}
		cut := c.findCut(src, start, alignRuneEnd(src, end), spans)
		if cut <= lastEnd {
			// overlap backed into a region whose cut cannot advance past the
			// previous piece, drop the overlap for this step
			start = lastEnd
			continue
		}
		pieces = append(pieces, c.piece(src, len(pieces), start, cut))
		lastEnd = cut
		if cut >= len(src) {
			break
		}

		next := alignRuneStart(src, cut-overlap)
		if next <= start {
			next = cut
		}
		start = next
	}
	return pieces, nil
}

func (c *Chunker) piece(src string, ordinal, start, end int) Piece {
	text := src[start:end]
	return Piece{
		Ordinal:    ordinal,
		Start:      start,
		End:        end,
		Text:       text,
		TokenCount: estimateTokens(text),
	}
}

// findCut picks a cut position in (start, end], snapping to the best natural
// boundary in the back half of the window and pushing the cut out of any
// protected span.
func (c *Chunker) findCut(src string, start, end int, spans []span) int {
	minCut := start + (end-start)/2
	cut := end
	if idx := strings.LastIndex(src[minCut:end], "\n\n"); idx >= 0 {
		cut = minCut + idx + 2
	} else if p := lastSentenceEnd(src, minCut, end); p > 0 {
		cut = p
	} else if idx := strings.LastIndexByte(src[minCut:end], '\n'); idx >= 0 {
		cut = minCut + idx + 1
	}
	if s, ok := spanContaining(spans, cut); ok {
		if s.start > start {
			cut = s.start
		} else {
			// span swallows the whole window, emit it as one oversized piece
			cut = s.end
			if cut > len(src) {
				cut = len(src)
			}
		}
	}
	if cut <= start {
		cut = end
	}
	return cut
}

// lastSentenceEnd returns the position just after the last sentence
// terminator in [min, end) that is followed by whitespace, or 0.
func lastSentenceEnd(src string, min, end int) int {
	best := 0
	for i := min; i < end; {
		r, size := utf8.DecodeRuneInString(src[i:])
		if isSentenceTerminator(r) {
			after := i + size
			if after >= end {
				best = after
			} else if nr, _ := utf8.DecodeRuneInString(src[after:]); unicode.IsSpace(nr) {
				best = after
			}
		}
		i += size
	}
	return best
}

func isSentenceTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '…':
		return true
	}
	return false
}

func alignRuneStart(src string, pos int) int {
	for pos > 0 && !utf8.RuneStart(src[pos]) {
		pos--
	}
	return pos
}

func alignRuneEnd(src string, pos int) int {
	for pos < len(src) && !utf8.RuneStart(src[pos]) {
		pos++
	}
	return pos
}

// estimateTokens approximates the token count as whitespace-delimited words
// plus one per CJK rune.
func estimateTokens(s string) int {
	tokens := 0
	inWord := false
	for _, r := range s {
		switch {
		case unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul):
			tokens++
			inWord = false
		case unicode.IsSpace(r):
			inWord = false
		default:
			if !inWord {
				tokens++
				inWord = true
			}
		}
	}
	return tokens
}
