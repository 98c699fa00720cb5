package chunker

import (
	"strings"
	"testing"

	"github.com/notebase-ai/notebase/internal/model"
	"github.com/stretchr/testify/assert"
)

func reconstruct(t *testing.T, pieces []Piece) string {
	t.Helper()
	var b strings.Builder
	for i, p := range pieces {
		if i == 0 {
			b.WriteString(p.Text)
			continue
		}
		overlap := pieces[i-1].End - p.Start
		assert.GreaterOrEqual(t, overlap, 0)
		assert.Less(t, overlap, len(p.Text))
		b.WriteString(p.Text[overlap:])
	}
	return b.String()
}

func TestSplitWindowCount(t *testing.T) {
	ck := New(Config{WindowChars: 1000, OverlapFraction: 0.1})
	src := strings.Repeat("a", 10000)

	pieces, err := ck.Split(src, model.SourceKindText)
	assert.NoError(t, err)
	assert.Len(t, pieces, 11)
	for i, p := range pieces {
		assert.Equal(t, i, p.Ordinal)
		assert.Equal(t, src[p.Start:p.End], p.Text)
		if i > 0 {
			assert.GreaterOrEqual(t, pieces[i-1].End-p.Start, 100)
		}
	}
	assert.Equal(t, src, reconstruct(t, pieces))
}

func TestSplitRoundTrip(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog. ")
		if i%7 == 0 {
			b.WriteString("\n\n")
		}
	}
	src := b.String()

	ck := New(Config{WindowChars: 500, OverlapFraction: 0.1})
	pieces, err := ck.Split(src, model.SourceKindText)
	assert.NoError(t, err)
	assert.Greater(t, len(pieces), 1)
	for _, p := range pieces {
		assert.Equal(t, src[p.Start:p.End], p.Text)
	}
	assert.Equal(t, src, reconstruct(t, pieces))
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	src := strings.Repeat("word ", 150) + "End of thought. " + strings.Repeat("word ", 100)
	ck := New(Config{WindowChars: 800, OverlapFraction: 0.1})

	pieces, err := ck.Split(src, model.SourceKindText)
	assert.NoError(t, err)
	assert.Greater(t, len(pieces), 1)
	first := pieces[0].Text
	assert.True(t, strings.HasSuffix(strings.TrimRight(first, " "), "."),
		"cut should land after a sentence terminator, got %q", first[len(first)-20:])
}

func TestSplitKeepsCodeBlockIntact(t *testing.T) {
	code := "```go\n" + strings.Repeat("fmt.Println(42)\n", 30) + "```\n"
	src := strings.Repeat("prose sentence here. ", 20) + "\n\n" + code + "\n" + strings.Repeat("more prose after. ", 20)

	ck := New(Config{WindowChars: 400, OverlapFraction: 0.1})
	pieces, err := ck.Split(src, model.SourceKindMarkdown)
	assert.NoError(t, err)

	codeStart := strings.Index(src, "```go")
	codeEnd := strings.Index(src[codeStart+5:], "```") + codeStart + 5 + 4
	for i, p := range pieces {
		assert.Equal(t, src[p.Start:p.End], p.Text)
		// no piece may end strictly inside the fenced block
		assert.False(t, p.End > codeStart && p.End < codeEnd,
			"piece %d ends at %d inside code block [%d,%d)", i, p.End, codeStart, codeEnd)
	}
	assert.Equal(t, src, reconstruct(t, pieces))
}

func TestSplitUnicodeSafe(t *testing.T) {
	src := strings.Repeat("これは日本語のテキストです。", 200)
	ck := New(Config{WindowChars: 300, OverlapFraction: 0.1})

	pieces, err := ck.Split(src, model.SourceKindText)
	assert.NoError(t, err)
	for _, p := range pieces {
		assert.Equal(t, src[p.Start:p.End], p.Text)
		assert.True(t, strings.ToValidUTF8(p.Text, "") == p.Text, "piece must stay valid utf-8")
	}
	assert.Equal(t, src, reconstruct(t, pieces))
}

func TestSplitErrors(t *testing.T) {
	ck := New(Config{WindowChars: 100, OverlapFraction: 0.1, MaxSourceBytes: 1024})

	_, err := ck.Split("   \n\t ", model.SourceKindText)
	assert.Error(t, err)

	_, err = ck.Split(strings.Repeat("x", 2048), model.SourceKindText)
	assert.Error(t, err)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 4, estimateTokens("four plain english words"))
	assert.Equal(t, 4, estimateTokens("日本語か"))
	assert.Equal(t, 0, estimateTokens("   "))
}
