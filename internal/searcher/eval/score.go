package eval

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/model"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/query"
)

// scoreList converts a list-producing node's postings into per-document
// scores under the active model.
func (e *Evaluator) scoreList(n *query.Node) (*scored, error) {
	l, err := e.list(n)
	if err != nil {
		return nil, err
	}
	field := l.Field
	out := make(ScoreList, len(l.Postings))
	result := &scored{list: out, defaultScore: zeroDefault}

	switch e.model.Kind {
	case model.UnrankedBoolean:
		for i, p := range l.Postings {
			out[i] = DocScore{DocID: p.DocID, Score: 1.0}
		}
	case model.RankedBoolean:
		for i, p := range l.Postings {
			out[i] = DocScore{DocID: p.DocID, Score: float64(p.Frequency)}
		}
	case model.BM25:
		stats := model.CollectionStats{
			DocCount:       e.reader.DocCount(field),
			TotalTermCount: e.reader.TotalTermCount(field),
		}
		params := e.model.BM25
		for i, p := range l.Postings {
			dl := e.reader.DocLength(field, p.DocID)
			out[i] = DocScore{DocID: p.DocID, Score: params.LeafScore(p.Frequency, l.DocFreq, dl, stats)}
		}
	case model.Indri:
		background := model.Background(l.CollectionTermFreq, e.reader.TotalTermCount(field))
		params := e.model.Indri
		for i, p := range l.Postings {
			dl := e.reader.DocLength(field, p.DocID)
			out[i] = DocScore{DocID: p.DocID, Score: params.LeafScore(p.Frequency, dl, background)}
		}
		reader := e.reader
		result.defaultScore = func(docID int) float64 {
			return params.LeafScore(0, reader.DocLength(field, docID), background)
		}
	}
	return result, nil
}

func (e *Evaluator) booleanAnd(children []*scored) *scored {
	lists := make([]ScoreList, len(children))
	for i, c := range children {
		lists[i] = c.list
	}
	combine := minScore
	if e.model.Kind == model.UnrankedBoolean {
		combine = constantOne
	}
	return &scored{list: intersectionMerge(lists, combine), defaultScore: zeroDefault}
}

func (e *Evaluator) booleanOr(children []*scored) *scored {
	combine := maxScore
	if e.model.Kind == model.UnrankedBoolean {
		combine = constantOne
	}
	return &scored{list: unionWithDefaultMerge(children, combine), defaultScore: zeroDefault}
}

func (e *Evaluator) bm25Sum(children []*scored) *scored {
	weight := e.model.BM25.QueryWeight(1)
	combine := func(scores []float64) float64 {
		var total float64
		for _, s := range scores {
			total += s * weight
		}
		return total
	}
	return &scored{list: unionWithDefaultMerge(children, combine), defaultScore: zeroDefault}
}

// indriAnd serves both #AND (uniform weights) and #WAND under Indri. An
// all-zero weight set scores every document 0, matching #WSUM.
func (e *Evaluator) indriAnd(children []*scored, weights []float64) *scored {
	var total float64
	for _, w := range weights {
		total += w
	}
	combine := func(scores []float64) float64 {
		if len(scores) == 0 || total == 0 {
			return 0
		}
		product := 1.0
		for i, s := range scores {
			product *= math.Pow(s, weights[i])
		}
		return product
	}
	return &scored{
		list:         unionWithDefaultMerge(children, combine),
		defaultScore: combinedDefault(children, combine),
	}
}

func (e *Evaluator) indriWSum(children []*scored, weights []float64) *scored {
	combine := func(scores []float64) float64 {
		var total float64
		for i, s := range scores {
			total += s * weights[i]
		}
		return total
	}
	return &scored{
		list:         unionWithDefaultMerge(children, combine),
		defaultScore: combinedDefault(children, combine),
	}
}

// combinedDefault applies an operator's formula to its children's defaults.
func combinedDefault(children []*scored, combine func([]float64) float64) func(int) float64 {
	return func(docID int) float64 {
		scores := make([]float64, len(children))
		for i, c := range children {
			scores[i] = c.defaultScore(docID)
		}
		return combine(scores)
	}
}

func uniformWeights(k int) []float64 {
	weights := make([]float64, k)
	for i := range weights {
		weights[i] = 1 / float64(k)
	}
	return weights
}

// normalizeWeights rescales weights to sum to 1; an all-zero set stays zero.
func normalizeWeights(weights []float64) []float64 {
	var total float64
	for _, w := range weights {
		total += w
	}
	out := make([]float64, len(weights))
	if total == 0 {
		return out
	}
	for i, w := range weights {
		out[i] = w / total
	}
	return out
}

func minScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	m := scores[0]
	for _, s := range scores[1:] {
		m = math.Min(m, s)
	}
	return m
}

func maxScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	m := scores[0]
	for _, s := range scores[1:] {
		m = math.Max(m, s)
	}
	return m
}

func constantOne([]float64) float64 { return 1.0 }
