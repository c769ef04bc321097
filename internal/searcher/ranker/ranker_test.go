package ranker

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/eval"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/model"
)

type names map[int]string

func (n names) ExternalID(id int) string { return n[id] }

func ids(docs []ScoredDoc) []int {
	out := make([]int, len(docs))
	for i, d := range docs {
		out[i] = d.DocID
	}
	return out
}

func TestRankByScoreThenID(t *testing.T) {
	list := eval.ScoreList{{DocID: 0, Score: 0.5}, {DocID: 1, Score: 0.9}, {DocID: 2, Score: 0.5}, {DocID: 3, Score: -1}}

	got := Rank(list, model.BM25, nil, 0)
	assert.Equal(t, []int{1, 0, 2, 3}, ids(got))
}

func TestRankTieBreakUsesExternalID(t *testing.T) {
	list := eval.ScoreList{{DocID: 0, Score: 1}, {DocID: 1, Score: 1}}
	got := Rank(list, model.RankedBoolean, names{0: "doc-b", 1: "doc-a"}, 0)
	assert.Equal(t, []int{1, 0}, ids(got))
	assert.Equal(t, "doc-a", got[0].ExternalID)
}

func TestRankUnrankedBooleanByIDOnly(t *testing.T) {
	list := eval.ScoreList{{DocID: 4, Score: 1}, {DocID: 1, Score: 1}, {DocID: 9, Score: 1}}
	got := Rank(list, model.UnrankedBoolean, nil, 0)
	assert.Equal(t, []int{1, 4, 9}, ids(got))
}

func TestRankLimitMatchesFullSort(t *testing.T) {
	var list eval.ScoreList
	for i := 0; i < 200; i++ {
		list = append(list, eval.DocScore{DocID: i, Score: float64((i * 37) % 11)})
	}
	namer := names{}
	for i := 0; i < 200; i++ {
		namer[i] = fmt.Sprintf("d%03d", i)
	}

	full := Rank(list, model.Indri, namer, 0)
	for _, k := range []int{1, 10, 100, 199} {
		assert.Equal(t, full[:k], Rank(list, model.Indri, namer, k), "limit %d", k)
	}
	assert.Len(t, Rank(list, model.Indri, namer, 500), 200)
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, Rank(nil, model.Indri, nil, 10))
}

func BenchmarkRankTop100(b *testing.B) {
	list := make(eval.ScoreList, 50000)
	for i := range list {
		list[i] = eval.DocScore{DocID: i, Score: float64((i * 7919) % 1000)}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Rank(list, model.BM25, nil, 100)
	}
}
