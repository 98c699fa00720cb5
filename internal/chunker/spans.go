package chunker

import (
	"bytes"
	"sort"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// span is a half-open byte range [start, end) that must not be cut.
type span struct {
	start int
	end   int
}

// protectedSpans parses markdown and returns the byte ranges of fenced code
// blocks and tables. Ranges are widened to whole lines so the fence markers
// themselves stay inside the protected region.
func protectedSpans(source []byte) []span {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var spans []span
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node.Kind() {
		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			if s, ok := nodeSpan(node, source); ok {
				spans = append(spans, widenFence(s, source))
			}
			return ast.WalkSkipChildren, nil
		case extast.KindTable:
			if s, ok := nodeSpan(node, source); ok {
				spans = append(spans, widenLines(s, source))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	return mergeSpans(spans)
}

// nodeSpan collects the minimal byte range covering every text segment under
// the node.
func nodeSpan(node ast.Node, source []byte) (span, bool) {
	start, end := -1, -1
	update := func(s, e int) {
		if start == -1 || s < start {
			start = s
		}
		if e > end {
			end = e
		}
	}
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n.Type() == ast.TypeBlock {
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				update(seg.Start, seg.Stop)
			}
		}
		if t, ok := n.(*ast.Text); ok {
			update(t.Segment.Start, t.Segment.Stop)
		}
		return ast.WalkContinue, nil
	})
	if start < 0 || end <= start {
		return span{}, false
	}
	return span{start: start, end: end}, true
}

// widenFence extends a fenced block's content range over the fence lines
// above and below.
func widenFence(s span, source []byte) span {
	start := lineStart(source, s.start)
	if start > 0 {
		start = lineStart(source, start-1)
	}
	end := lineEnd(source, s.end)
	if end < len(source) {
		end = lineEnd(source, end+1)
	}
	return span{start: start, end: end}
}

func widenLines(s span, source []byte) span {
	return span{start: lineStart(source, s.start), end: lineEnd(source, s.end)}
}

func lineStart(source []byte, pos int) int {
	if pos > len(source) {
		pos = len(source)
	}
	idx := bytes.LastIndexByte(source[:pos], '\n')
	return idx + 1
}

func lineEnd(source []byte, pos int) int {
	if pos >= len(source) {
		return len(source)
	}
	idx := bytes.IndexByte(source[pos:], '\n')
	if idx < 0 {
		return len(source)
	}
	return pos + idx + 1
}

func mergeSpans(spans []span) []span {
	if len(spans) <= 1 {
		return spans
	}
	merged := spans[:1]
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.start <= last.end {
			if s.end > last.end {
				last.end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

func spanContaining(spans []span, pos int) (span, bool) {
	for _, s := range spans {
		if pos > s.start && pos < s.end {
			return s, true
		}
		if s.start >= pos {
			break
		}
	}
	return span{}, false
}
