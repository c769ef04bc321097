// Package ranker orders evaluated score lists for output.
package ranker

import (
	"container/heap"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/eval"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/model"
)

type ScoredDoc struct {
	DocID      int     `json:"doc_id"`
	ExternalID string  `json:"external_id,omitempty"`
	Score      float64 `json:"score"`
}

// Rank orders list by descending score with ties broken by ascending
// document identifier, or by identifier alone for unranked Boolean. When
// namer is non-nil the external identifier is attached and used for the
// tie-break. A positive limit truncates the result.
func Rank(list eval.ScoreList, kind model.Kind, namer index.DocNamer, limit int) []ScoredDoc {
	docs := make([]ScoredDoc, len(list))
	for i, d := range list {
		docs[i] = ScoredDoc{DocID: d.DocID, Score: d.Score}
		if namer != nil {
			docs[i].ExternalID = namer.ExternalID(d.DocID)
		}
	}

	less := byScore
	if !kind.Ranked() {
		less = byID
	}
	if limit > 0 && limit < len(docs) {
		return topK(docs, limit, less)
	}
	sort.Slice(docs, func(i, j int) bool { return less(docs[i], docs[j]) })
	return docs
}

func byID(a, b ScoredDoc) bool {
	if a.ExternalID != b.ExternalID {
		return a.ExternalID < b.ExternalID
	}
	return a.DocID < b.DocID
}

func byScore(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return byID(a, b)
}

// topK keeps the k best documents in a bounded heap whose root is the worst
// kept document, then drains it into rank order.
func topK(docs []ScoredDoc, k int, less func(a, b ScoredDoc) bool) []ScoredDoc {
	h := &docHeap{less: less}
	for _, d := range docs {
		if h.Len() < k {
			heap.Push(h, d)
			continue
		}
		if less(d, h.docs[0]) {
			h.docs[0] = d
			heap.Fix(h, 0)
		}
	}
	result := make([]ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ScoredDoc)
	}
	return result
}

type docHeap struct {
	docs []ScoredDoc
	less func(a, b ScoredDoc) bool
}

func (h docHeap) Len() int { return len(h.docs) }

// Less inverts the rank order so the worst kept document sits at the root.
func (h docHeap) Less(i, j int) bool { return h.less(h.docs[j], h.docs[i]) }

func (h docHeap) Swap(i, j int) { h.docs[i], h.docs[j] = h.docs[j], h.docs[i] }

func (h *docHeap) Push(x interface{}) {
	h.docs = append(h.docs, x.(ScoredDoc))
}

func (h *docHeap) Pop() interface{} {
	old := h.docs
	n := len(old)
	item := old[n-1]
	h.docs = old[:n-1]
	return item
}
