package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindCapabilities(t *testing.T) {
	for _, k := range []Kind{Term, Syn, Near, Window} {
		assert.True(t, k.ProducesList(), k.String())
		assert.False(t, k.ProducesScore(), k.String())
	}
	for _, k := range []Kind{Score, And, Or, Sum, WAnd, WSum} {
		assert.True(t, k.ProducesScore(), k.String())
	}
	assert.True(t, WSum.Weighted())
	assert.False(t, Sum.Weighted())
	assert.True(t, Window.Proximity())
}

func TestStringCanonicalForm(t *testing.T) {
	tree := NewOperator(And,
		NewTerm("a", "body"),
		NewProximity(Near, 2, NewTerm("b", "body"), NewTerm("c", "title")),
		NewWeighted(WSum, []float64{0.5, 2}, NewTerm("d", "body"), NewTerm("e", "")),
	)
	assert.Equal(t,
		"#AND( a.body #NEAR/2( b.body c.title ) #WSUM( 0.5 d.body 2 e ) )",
		tree.String())
}

func TestAddArg(t *testing.T) {
	w := NewWeighted(WAnd, nil)
	require.NoError(t, w.AddArg(NewTerm("x", "body"), 0.3))
	assert.Error(t, w.AddArg(NewTerm("y", "body")))
	assert.Equal(t, []float64{0.3}, w.Weights)

	and := NewOperator(And)
	assert.Error(t, and.AddArg(NewTerm("x", "body"), 1))
	require.NoError(t, and.AddArg(NewTerm("x", "body")))

	assert.Error(t, NewTerm("x", "body").AddArg(NewTerm("y", "body")))
}

func TestValidate(t *testing.T) {
	ok := NewOperator(Or, NewTerm("a", "body"), NewOperator(Syn, NewTerm("b", "body"), NewTerm("c", "body")))
	assert.NoError(t, ok.Validate())

	tests := []struct {
		name string
		node *Node
	}{
		{"empty operator", NewOperator(And)},
		{"score under syn", NewOperator(Syn, NewOperator(And, NewTerm("a", "body")))},
		{"zero distance", NewProximity(Window, 0, NewTerm("a", "body"), NewTerm("b", "body"))},
		{"weight mismatch", NewWeighted(WSum, []float64{1}, NewTerm("a", "body"), NewTerm("b", "body"))},
		{"score arity", &Node{Kind: Score, Args: []*Node{NewTerm("a", "body"), NewTerm("b", "body")}}},
		{"empty term", NewOperator(And, NewTerm("", "body"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.node.Validate())
		})
	}
}

func TestTerms(t *testing.T) {
	tree := NewOperator(And, NewTerm("a", "body"), NewScore(NewOperator(Syn, NewTerm("b", "body"), NewTerm("c", "body"))))
	var got []string
	for _, leaf := range tree.Terms() {
		got = append(got, leaf.Term)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
