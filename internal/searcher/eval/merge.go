package eval

// intersectionMerge emits a document only when every child list contains it.
// Cursors leapfrog toward the largest current docid until all agree.
func intersectionMerge(children []ScoreList, combine func(scores []float64) float64) ScoreList {
	if len(children) == 0 {
		return ScoreList{}
	}
	cursors := make([]int, len(children))
	scores := make([]float64, len(children))
	out := ScoreList{}
	for {
		target := -1
		for i, list := range children {
			if cursors[i] >= len(list) {
				return out
			}
			if id := list[cursors[i]].DocID; id > target {
				target = id
			}
		}

		aligned := true
		for i, list := range children {
			for cursors[i] < len(list) && list[cursors[i]].DocID < target {
				cursors[i]++
			}
			if cursors[i] >= len(list) {
				return out
			}
			if list[cursors[i]].DocID != target {
				aligned = false
			}
		}
		if !aligned {
			continue
		}

		for i, list := range children {
			scores[i] = list[cursors[i]].Score
			cursors[i]++
		}
		out = append(out, DocScore{DocID: target, Score: combine(scores)})
	}
}

// unionWithDefaultMerge emits every document present in any child. Children
// that did not match the document contribute their default score.
func unionWithDefaultMerge(children []*scored, combine func(scores []float64) float64) ScoreList {
	cursors := make([]int, len(children))
	scores := make([]float64, len(children))
	out := ScoreList{}
	for {
		next := -1
		for i, child := range children {
			if cursors[i] >= len(child.list) {
				continue
			}
			if id := child.list[cursors[i]].DocID; next < 0 || id < next {
				next = id
			}
		}
		if next < 0 {
			return out
		}

		for i, child := range children {
			if cursors[i] < len(child.list) && child.list[cursors[i]].DocID == next {
				scores[i] = child.list[cursors[i]].Score
				cursors[i]++
				continue
			}
			scores[i] = child.defaultScore(next)
		}
		out = append(out, DocScore{DocID: next, Score: combine(scores)})
	}
}
