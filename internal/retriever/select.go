package retriever

import (
	"sort"

	"github.com/notebase-ai/notebase/internal/model"
)

type selectOptions struct {
	topK          int
	minSimilarity float64
	tieEpsilon    float64
	perSourceCap  int
}

// selectTop orders candidates by similarity with an epsilon tie-break on
// (source id, ordinal) for deterministic output, drops everything under the
// similarity floor, and caps how many chunks a single source may contribute
// so one long document cannot crowd out the rest of the notebook.
func selectTop(candidates []model.RetrievalResult, opts selectOptions) []model.RetrievalResult {
	if opts.topK <= 0 {
		return nil
	}
	sourceCap := opts.perSourceCap
	if sourceCap <= 0 {
		sourceCap = (opts.topK + 1) / 2
	}

	kept := make([]model.RetrievalResult, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity >= opts.minSimilarity {
			kept = append(kept, c)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		return rankLess(a, b)
	})
	// neighbours whose scores differ by at most the epsilon count as tied
	// and settle on (source id, ordinal). Applying the epsilon only between
	// adjacent ranks keeps the primary comparator a strict weak order, so
	// the sort itself stays deterministic. Each swap removes one rank
	// inversion, so the pass terminates.
	for swapped := true; swapped; {
		swapped = false
		for i := 1; i < len(kept); i++ {
			a, b := kept[i-1], kept[i]
			if a.Similarity-b.Similarity <= opts.tieEpsilon && rankLess(b, a) {
				kept[i-1], kept[i] = b, a
				swapped = true
			}
		}
	}

	perSource := make(map[string]int, len(kept))
	out := make([]model.RetrievalResult, 0, opts.topK)
	for _, c := range kept {
		if len(out) == opts.topK {
			break
		}
		if perSource[c.SourceID] >= sourceCap {
			continue
		}
		perSource[c.SourceID]++
		out = append(out, c)
	}
	return out
}

func rankLess(a, b model.RetrievalResult) bool {
	if a.SourceID != b.SourceID {
		return a.SourceID < b.SourceID
	}
	return a.Ordinal < b.Ordinal
}
