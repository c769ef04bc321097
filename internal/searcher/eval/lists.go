package eval

import (
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/indexer/index"
)

// synonym unions same-field lists. Postings for the same document merge
// their positions, so a position shared by two children is counted once.
func synonym(field string, lists []*index.InvertedList) *index.InvertedList {
	cursors := make([]int, len(lists))
	var out index.PostingList
	for {
		next := -1
		for i, l := range lists {
			if cursors[i] < len(l.Postings) {
				if id := l.Postings[cursors[i]].DocID; next < 0 || id < next {
					next = id
				}
			}
		}
		if next < 0 {
			return index.NewInvertedList(field, out)
		}

		var positions []int
		for i, l := range lists {
			if cursors[i] < len(l.Postings) && l.Postings[cursors[i]].DocID == next {
				positions = mergePositions(positions, l.Postings[cursors[i]].Positions)
				cursors[i]++
			}
		}
		out = append(out, index.Posting{DocID: next, Frequency: len(positions), Positions: positions})
	}
}

func mergePositions(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		var next int
		switch {
		case j >= len(b) || (i < len(a) && a[i] < b[j]):
			next = a[i]
			i++
		case i >= len(a) || b[j] < a[i]:
			next = b[j]
			j++
		default:
			next = a[i]
			i++
			j++
		}
		out = append(out, next)
	}
	return out
}

// matcher inspects one position per child and reports whether the
// combination matches and, if so, the position recorded for it.
type matcher func(pos []int) (int, bool)

// nearMatcher requires each child to follow the previous one within n
// positions, in order. The match is recorded at the last child's position.
func nearMatcher(n int) matcher {
	return func(pos []int) (int, bool) {
		for i := 0; i+1 < len(pos); i++ {
			gap := pos[i+1] - pos[i]
			if gap <= 0 || gap > n {
				return 0, false
			}
		}
		return pos[len(pos)-1], true
	}
}

// windowMatcher requires all positions to fall in a span of n tokens, in any
// order. The match is recorded at the largest position.
func windowMatcher(n int) matcher {
	return func(pos []int) (int, bool) {
		lo, hi := pos[0], pos[0]
		for _, p := range pos[1:] {
			lo = min(lo, p)
			hi = max(hi, p)
		}
		if hi-lo > n-1 {
			return 0, false
		}
		return hi, true
	}
}

// proximity intersects lists on docid, then walks positions in each shared
// document. On a miss only the cursor at the smallest position advances; on
// a match every cursor advances.
func proximity(field string, lists []*index.InvertedList, match matcher) *index.InvertedList {
	k := len(lists)
	if k == 0 {
		return index.NewInvertedList(field, nil)
	}
	docCursors := make([]int, k)
	current := make([][]int, k)
	var out index.PostingList
	for {
		target := -1
		for i, l := range lists {
			if docCursors[i] >= len(l.Postings) {
				return index.NewInvertedList(field, out)
			}
			target = max(target, l.Postings[docCursors[i]].DocID)
		}

		aligned := true
		for i, l := range lists {
			for docCursors[i] < len(l.Postings) && l.Postings[docCursors[i]].DocID < target {
				docCursors[i]++
			}
			if docCursors[i] >= len(l.Postings) {
				return index.NewInvertedList(field, out)
			}
			if l.Postings[docCursors[i]].DocID != target {
				aligned = false
			}
		}
		if !aligned {
			continue
		}

		for i, l := range lists {
			current[i] = l.Postings[docCursors[i]].Positions
			docCursors[i]++
		}
		if matches := matchPositions(current, match); len(matches) > 0 {
			out = append(out, index.Posting{DocID: target, Frequency: len(matches), Positions: matches})
		}
	}
}

func matchPositions(positions [][]int, match matcher) []int {
	k := len(positions)
	cursors := make([]int, k)
	pos := make([]int, k)
	var matches []int
	for {
		for i := range positions {
			if cursors[i] >= len(positions[i]) {
				return matches
			}
			pos[i] = positions[i][cursors[i]]
		}
		if at, ok := match(pos); ok {
			matches = append(matches, at)
			for i := range cursors {
				cursors[i]++
			}
			continue
		}
		lowest := 0
		for i := 1; i < k; i++ {
			if pos[i] < pos[lowest] {
				lowest = i
			}
		}
		cursors[lowest]++
	}
}
