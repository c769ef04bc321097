package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/model"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/errors"
)

// lower keeps every word except "the", lower-cased.
var lower = NormalizerFunc(func(raw string) []string {
	w := strings.ToLower(raw)
	if w == "the" || w == "" {
		return nil
	}
	return []string{w}
})

func TestParseCanonicalRoundTrip(t *testing.T) {
	tree, warnings, err := Parse("#AND(a b)", model.RankedBoolean, lower)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "#AND( a.body b.body )", tree.String())

	again, _, err := Parse(tree.String(), model.RankedBoolean, lower)
	require.NoError(t, err)
	assert.Equal(t, tree.String(), again.String())
}

func TestParseImplicitOperator(t *testing.T) {
	tests := []struct {
		kind model.Kind
		want string
	}{
		{model.UnrankedBoolean, "#OR( a.body b.body )"},
		{model.RankedBoolean, "#OR( a.body b.body )"},
		{model.BM25, "#SUM( a.body b.body )"},
		{model.Indri, "#AND( a.body b.body )"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			tree, _, err := Parse("  a, b ", tt.kind, lower)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tree.String())
		})
	}
}

func TestParseWrapsListOperators(t *testing.T) {
	tree, _, err := Parse("#NEAR/2(a b)", model.Indri, lower)
	require.NoError(t, err)
	assert.Equal(t, "#AND( #NEAR/2( a.body b.body ) )", tree.String())

	tree, _, err = Parse("#SYN(a b) c", model.BM25, lower)
	require.NoError(t, err)
	assert.Equal(t, "#SUM( #SYN( a.body b.body ) c.body )", tree.String())
}

func TestParseRejectsTreesAfterExplicitRoot(t *testing.T) {
	for _, in := range []string{"#AND(a) #AND(b)", "#AND(a) #OR(b)", "#WSUM(1 a) c)"} {
		_, _, err := Parse(in, model.Indri, lower)
		var pe *ParseError
		require.True(t, errors.As(err, &pe), in)
		assert.ErrorIs(t, err, apperrors.ErrInvalidQuery)
		assert.Contains(t, pe.Message, "after end of query", in)
	}
}

func TestParseOperatorsCaseInsensitive(t *testing.T) {
	tree, _, err := Parse("#wand(0.7 #window/8(x y) 0.3 #Syn(z.title w.title))", model.Indri, lower)
	require.NoError(t, err)
	assert.Equal(t, "#WAND( 0.7 #WINDOW/8( x.body y.body ) 0.3 #SYN( z.title w.title ) )", tree.String())
	assert.Equal(t, []float64{0.7, 0.3}, tree.Weights)
}

func TestParseFields(t *testing.T) {
	tree, _, err := Parse("#AND(Apple.TITLE u.s.url pie.)", model.Indri, lower)
	require.NoError(t, err)
	leaves := tree.Terms()
	require.Len(t, leaves, 3)
	assert.Equal(t, [2]string{"apple", "title"}, [2]string{leaves[0].Term, leaves[0].Field})
	assert.Equal(t, [2]string{"u.s", "url"}, [2]string{leaves[1].Term, leaves[1].Field})
	assert.Equal(t, [2]string{"pie.", "body"}, [2]string{leaves[2].Term, leaves[2].Field})
}

func TestParseCustomDefaultField(t *testing.T) {
	tree, _, err := New(lower, "title").Parse("apple", model.Indri)
	require.NoError(t, err)
	assert.Equal(t, "#AND( apple.title )", tree.String())
}

func TestParseDropsStopwords(t *testing.T) {
	tree, warnings, err := Parse("#AND(the cat the.title)", model.Indri, lower)
	require.NoError(t, err)
	assert.Equal(t, "#AND( cat.body )", tree.String())
	assert.Len(t, warnings, 2)
}

func TestParseWeightedRecovery(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		want     string
		warnings int
	}{
		{
			name: "stopword drops reserved weight",
			in:   "#WSUM(0.5 the 0.3 cat 0.2 dog)",
			want: "#WSUM( 0.3 cat.body 0.2 dog.body )", warnings: 1,
		},
		{
			name: "bad weight drops its argument",
			in:   "#WSUM(abc cat 0.4 dog)",
			want: "#WSUM( 0.4 dog.body )", warnings: 1,
		},
		{
			name: "bad weight drops operator argument",
			in:   "#WAND(x #AND(cat) 1 dog)",
			want: "#WAND( 1 dog.body )", warnings: 1,
		},
		{
			name: "empty operator drops reserved weight",
			in:   "#WAND(0.5 #AND(the) 0.5 dog)",
			want: "#WAND( 0.5 dog.body )", warnings: 2,
		},
		{
			name: "trailing weight",
			in:   "#WSUM(1 cat 2)",
			want: "#WSUM( 1 cat.body )", warnings: 1,
		},
		{
			name: "negative weight",
			in:   "#WSUM(-1 cat 2 dog)",
			want: "#WSUM( 2 dog.body )", warnings: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, warnings, err := Parse(tt.in, model.Indri, lower)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tree.String())
			assert.Len(t, warnings, tt.warnings)
			assert.Equal(t, len(tree.Args), len(tree.Weights))
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", "   "},
		{"leftover tokens", "#AND(a b) )"},
		{"second tree", "#AND(a) #OR(b)"},
		{"missing close", "#AND(a #OR(b)"},
		{"unknown operator", "#FOO(a)"},
		{"bad distance", "#NEAR/0(a b)"},
		{"non numeric distance", "#WINDOW/x(a b)"},
		{"operator without paren", "#AND a b"},
		{"score under list operator", "#AND(#SYN(a #OR(b)))"},
		{"only stopwords", "the the"},
		{"stray paren", "#AND(a (b))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse(tt.in, model.RankedBoolean, lower)
			require.Error(t, err)

			var pe *ParseError
			assert.True(t, errors.As(err, &pe))
			assert.ErrorIs(t, err, apperrors.ErrInvalidQuery)
		})
	}
}

func TestParseWithAnalyzer(t *testing.T) {
	tree, _, err := Parse("#NEAR/1(running dogs)", model.RankedBoolean, tokenizer.Analyzer{})
	require.NoError(t, err)
	assert.Equal(t, "#OR( #NEAR/1( run.body dog.body ) )", tree.String())
	assert.Equal(t, query.Or, tree.Kind)
}

func TestBlend(t *testing.T) {
	blended := Blend("apple pie", "#AND(apple pie recipe)", 0.7)
	assert.Equal(t, "#WSUM( 0.7 #AND( apple pie ) 0.30000000000000004 #AND(apple pie recipe) )", blended)

	tree, warnings, err := Parse(blended, model.Indri, lower)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, query.WSum, tree.Kind)
	require.Len(t, tree.Args, 2)
	assert.Len(t, tree.Args[1].Args, 3)
}
