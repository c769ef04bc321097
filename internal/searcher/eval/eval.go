// Package eval evaluates query trees document-at-a-time against an
// index.Reader. Every node is evaluated depth-first; combinators then walk
// their children's docid-sorted results with one cursor per child.
package eval

import (
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/model"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/errors"
)

// DocScore is one document's score from a score-producing node.
type DocScore struct {
	DocID int     `json:"doc_id"`
	Score float64 `json:"score"`
}

// ScoreList holds DocScores in strictly increasing DocID order.
type ScoreList []DocScore

// scored is the result of a score-producing node: the documents it matched
// and the score it contributes for any document it did not match.
type scored struct {
	list         ScoreList
	defaultScore func(docID int) float64
}

func zeroDefault(int) float64 { return 0 }

// Evaluator binds one retrieval model to one index. It holds no per-query
// state and may be reused for any number of sequential evaluations.
type Evaluator struct {
	reader index.Reader
	model  model.Model
	logger *slog.Logger
}

func New(reader index.Reader, m model.Model) *Evaluator {
	return &Evaluator{
		reader: reader,
		model:  m,
		logger: slog.Default().With("component", "query-evaluator"),
	}
}

// Evaluate runs tree under m against reader and returns the matching
// documents in docid order.
func Evaluate(tree *query.Node, m model.Model, reader index.Reader) (ScoreList, error) {
	return New(reader, m).Evaluate(tree)
}

func (e *Evaluator) Evaluate(tree *query.Node) (ScoreList, error) {
	if tree == nil {
		return nil, fmt.Errorf("evaluating nil query: %w", apperrors.ErrInvalidQuery)
	}
	switch e.model.Kind {
	case model.UnrankedBoolean, model.RankedBoolean, model.BM25, model.Indri:
	default:
		return nil, fmt.Errorf("retrieval model %s: %w", e.model.Kind, apperrors.ErrUnsupportedModel)
	}
	if err := tree.Validate(); err != nil {
		return nil, fmt.Errorf("evaluating %s: %v: %w", tree.Kind, err, apperrors.ErrInvalidQuery)
	}
	if err := e.checkSupport(tree); err != nil {
		return nil, err
	}
	root := tree
	if root.Kind.ProducesList() {
		root = query.NewScore(root)
	}
	result, err := e.score(root)
	if err != nil {
		return nil, err
	}
	return result.list, nil
}

// Supported reports whether an operator kind can be evaluated under a
// retrieval model.
func Supported(op query.Kind, m model.Kind) bool {
	switch op {
	case query.Term, query.Syn, query.Near, query.Window, query.Score:
		return true
	case query.And:
		return m.Boolean() || m == model.Indri
	case query.Or:
		return m.Boolean()
	case query.Sum:
		return m == model.BM25
	case query.WAnd, query.WSum:
		return m == model.Indri
	default:
		return false
	}
}

// checkSupport rejects the whole tree before any postings are read.
func (e *Evaluator) checkSupport(n *query.Node) error {
	if !Supported(n.Kind, e.model.Kind) {
		return &apperrors.UnsupportedError{Operator: n.Kind.String(), Model: e.model.Kind.String()}
	}
	for _, arg := range n.Args {
		if err := e.checkSupport(arg); err != nil {
			return err
		}
	}
	return nil
}

// score evaluates a score-producing node. List-producing nodes reaching here
// are scored as if wrapped in #SCORE.
func (e *Evaluator) score(n *query.Node) (*scored, error) {
	switch n.Kind {
	case query.Term, query.Syn, query.Near, query.Window:
		return e.scoreList(n)
	case query.Score:
		return e.scoreList(n.Args[0])
	}

	children := make([]*scored, len(n.Args))
	for i, arg := range n.Args {
		child, err := e.score(arg)
		if err != nil {
			return nil, err
		}
		children[i] = child
	}

	var result *scored
	switch n.Kind {
	case query.And:
		if e.model.Kind == model.Indri {
			result = e.indriAnd(children, uniformWeights(len(children)))
		} else {
			result = e.booleanAnd(children)
		}
	case query.Or:
		result = e.booleanOr(children)
	case query.Sum:
		result = e.bm25Sum(children)
	case query.WAnd:
		result = e.indriAnd(children, normalizeWeights(n.Weights))
	case query.WSum:
		result = e.indriWSum(children, normalizeWeights(n.Weights))
	default:
		return nil, &apperrors.UnsupportedError{Operator: n.Kind.String(), Model: e.model.Kind.String()}
	}
	e.logger.Debug("operator evaluated", "op", n.Kind.String(), "args", len(children), "docs", len(result.list))
	return result, nil
}

// list evaluates a list-producing node to a field-homogeneous inverted list.
func (e *Evaluator) list(n *query.Node) (*index.InvertedList, error) {
	switch n.Kind {
	case query.Term:
		l, err := e.reader.Postings(n.Field, n.Term)
		if err != nil {
			return nil, fmt.Errorf("fetching postings for %s.%s: %w", n.Term, n.Field, err)
		}
		if l == nil {
			l = index.NewInvertedList(n.Field, nil)
		}
		return l, nil
	case query.Syn, query.Near, query.Window:
		lists := make([]*index.InvertedList, len(n.Args))
		for i, arg := range n.Args {
			l, err := e.list(arg)
			if err != nil {
				return nil, err
			}
			lists[i] = l
		}
		field, err := commonField(n.Kind, lists)
		if err != nil {
			return nil, err
		}
		var out *index.InvertedList
		switch n.Kind {
		case query.Syn:
			out = synonym(field, lists)
		case query.Near:
			out = proximity(field, lists, nearMatcher(n.Distance))
		default:
			out = proximity(field, lists, windowMatcher(n.Distance))
		}
		e.logger.Debug("list operator evaluated", "op", n.Kind.String(), "field", field, "docs", out.DocFreq)
		return out, nil
	default:
		return nil, fmt.Errorf("%s does not produce an inverted list: %w", n.Kind, apperrors.ErrInvalidQuery)
	}
}

func commonField(kind query.Kind, lists []*index.InvertedList) (string, error) {
	if len(lists) == 0 {
		return "", nil
	}
	field := lists[0].Field
	for _, l := range lists[1:] {
		if l.Field != field {
			return "", fmt.Errorf("%s over fields %q and %q: %w", kind, field, l.Field, apperrors.ErrFieldMismatch)
		}
	}
	return field, nil
}
