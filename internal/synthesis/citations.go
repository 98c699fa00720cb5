package synthesis

import "strings"

// citationTracker extracts bracketed citation markers like [3] from a stream
// of text deltas. A marker may be split across delta boundaries, so the
// tracker carries any trailing partial marker into the next feed.
type citationTracker struct {
	carry string
	seen  map[int]struct{}
	order []int
}

func newCitationTracker() *citationTracker {
	return &citationTracker{seen: map[int]struct{}{}}
}

func (t *citationTracker) feed(delta string) {
	buf := t.carry + delta
	t.carry = ""

	i := 0
	for i < len(buf) {
		open := strings.IndexByte(buf[i:], '[')
		if open < 0 {
			return
		}
		i += open
		j := i + 1
		n := 0
		digits := 0
		for j < len(buf) && buf[j] >= '0' && buf[j] <= '9' {
			n = n*10 + int(buf[j]-'0')
			digits++
			j++
		}
		if j == len(buf) {
			// possibly "[12" cut by the delta boundary, finish it next feed
			if j-i <= 16 {
				t.carry = buf[i:]
			}
			return
		}
		if digits > 0 && buf[j] == ']' {
			t.record(n)
			i = j + 1
			continue
		}
		i++
	}
}

func (t *citationTracker) record(n int) {
	if n <= 0 {
		return
	}
	if _, ok := t.seen[n]; ok {
		return
	}
	t.seen[n] = struct{}{}
	t.order = append(t.order, n)
}

// indices returns the distinct marker values in first-appearance order.
func (t *citationTracker) indices() []int {
	return t.order
}
