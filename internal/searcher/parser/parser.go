// Package parser turns structured query text into a query.Node tree.
//
// The grammar is the Indri-style operator language: #AND, #OR, #SUM, #WAND,
// #WSUM, #SYN, #NEAR/n and #WINDOW/n over terms written as "surface" or
// "surface.field". Operator keywords are case-insensitive. Whitespace, commas
// and parentheses delimit tokens.
//
// Parsing is shift-reduce over an explicit stack of open operators. Problems
// that can be recovered from (a stop-word term, an unparseable weight) are
// returned as warnings; structural problems are returned as *ParseError.
package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/model"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/query"
)

// DefaultField is used for terms written without a ".field" suffix.
const DefaultField = "body"

// Normalizer converts a raw surface string into index terms. It may return
// no terms, for example for a stop-word.
type Normalizer interface {
	Normalize(raw string) []string
}

// NormalizerFunc adapts a plain function to Normalizer.
type NormalizerFunc func(raw string) []string

func (f NormalizerFunc) Normalize(raw string) []string { return f(raw) }

// Warning describes input the parser skipped.
type Warning struct {
	Token   string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %q", w.Message, w.Token)
}

// ParseError reports a query that cannot be turned into a tree.
type ParseError struct {
	Query   string
	Token   int
	Message string
}

func (e *ParseError) Error() string {
	if e.Token >= 0 {
		return fmt.Sprintf("parse error at token %d: %s", e.Token, e.Message)
	}
	return "parse error: " + e.Message
}

func (e *ParseError) Unwrap() error {
	return apperrors.ErrInvalidQuery
}

// Parser holds the collaborators used for every parse. It keeps no state
// between calls.
type Parser struct {
	norm         Normalizer
	defaultField string
}

func New(norm Normalizer, defaultField string) *Parser {
	if defaultField == "" {
		defaultField = DefaultField
	}
	return &Parser{norm: norm, defaultField: defaultField}
}

// Parse parses text with the default field.
func Parse(text string, kind model.Kind, norm Normalizer) (*query.Node, []Warning, error) {
	return New(norm, DefaultField).Parse(text, kind)
}

// ImplicitOperator is the combinator wrapped around text that does not open
// with an explicit score-producing operator.
func ImplicitOperator(kind model.Kind) query.Kind {
	switch kind {
	case model.UnrankedBoolean, model.RankedBoolean:
		return query.Or
	case model.BM25:
		return query.Sum
	default:
		return query.And
	}
}

type frame struct {
	node      *query.Node
	hasWeight bool
	weight    float64
	skipNext  bool
	discard   bool
}

func (p *Parser) Parse(text string, kind model.Kind) (*query.Node, []Warning, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, &ParseError{Query: text, Token: -1, Message: "empty query"}
	}
	if !hasExplicitOperator(text) {
		text = ImplicitOperator(kind).String() + "(" + text + ")"
	}

	tokens := tokenize(text)
	var (
		stack    []*frame
		root     *query.Node
		warnings []Warning
	)
	fail := func(i int, format string, args ...any) (*query.Node, []Warning, error) {
		return nil, warnings, &ParseError{Query: text, Token: i, Message: fmt.Sprintf(format, args...)}
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if root != nil {
			return fail(i, "unexpected token %q after end of query", tok)
		}

		switch {
		case strings.HasPrefix(tok, "#"):
			node, err := parseOperator(tok)
			if err != nil {
				return fail(i, "%v", err)
			}
			if i+1 >= len(tokens) || tokens[i+1] != "(" {
				return fail(i, "operator %s must be followed by '('", tok)
			}
			i++
			f := &frame{node: node}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				switch {
				case parent.skipNext:
					parent.skipNext = false
					f.discard = true
				case parent.node.Kind.Weighted() && !parent.hasWeight:
					warnings = append(warnings, Warning{Token: tok, Message: "operator in weight position dropped"})
					f.discard = true
				case parent.node.Kind.ProducesList() && node.Kind.ProducesScore():
					return fail(i-1, "%s cannot take score-producing argument %s", parent.node.Kind, node.Kind)
				}
			}
			stack = append(stack, f)

		case tok == "(":
			return fail(i, "unexpected '('")

		case tok == ")":
			if len(stack) == 0 {
				return fail(i, "unbalanced ')'")
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.hasWeight {
				warnings = append(warnings, Warning{Token: top.node.Kind.String(), Message: "trailing weight without argument dropped"})
			}
			if len(stack) == 0 {
				if len(top.node.Args) == 0 {
					return fail(i, "query has no usable terms")
				}
				root = top.node
				continue
			}
			parent := stack[len(stack)-1]
			if top.discard {
				continue
			}
			if len(top.node.Args) == 0 {
				warnings = append(warnings, Warning{Token: top.node.Kind.String(), Message: "empty operator dropped"})
				parent.hasWeight = false
				continue
			}
			attach(parent, top.node)

		default:
			if len(stack) == 0 {
				return fail(i, "term %q outside any operator", tok)
			}
			top := stack[len(stack)-1]
			if top.skipNext {
				top.skipNext = false
				continue
			}
			if top.node.Kind.Weighted() && !top.hasWeight {
				w, err := strconv.ParseFloat(tok, 64)
				if err != nil || w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
					warnings = append(warnings, Warning{Token: tok, Message: "invalid weight dropped with its argument"})
					top.skipNext = true
					continue
				}
				top.hasWeight = true
				top.weight = w
				continue
			}
			leaf, ok := p.term(tok)
			if !ok {
				warnings = append(warnings, Warning{Token: tok, Message: "term has no index terms after normalization"})
				top.hasWeight = false
				continue
			}
			attach(top, leaf)
		}
	}

	if len(stack) > 0 {
		return fail(-1, "missing ')' for %s", stack[len(stack)-1].node.Kind)
	}
	if err := root.Validate(); err != nil {
		return fail(-1, "%v", err)
	}
	return root, warnings, nil
}

func attach(parent *frame, child *query.Node) {
	if parent.node.Kind.Weighted() {
		parent.node.Args = append(parent.node.Args, child)
		parent.node.Weights = append(parent.node.Weights, parent.weight)
		parent.hasWeight = false
		parent.weight = 0
		return
	}
	parent.node.Args = append(parent.node.Args, child)
}

// term normalises a surface token, splitting off a ".field" suffix at the
// last dot.
func (p *Parser) term(tok string) (*query.Node, bool) {
	surface, field := tok, p.defaultField
	if dot := strings.LastIndexByte(tok, '.'); dot > 0 && dot < len(tok)-1 {
		surface, field = tok[:dot], strings.ToLower(tok[dot+1:])
	}
	terms := p.norm.Normalize(surface)
	if len(terms) == 0 || terms[0] == "" {
		return nil, false
	}
	return query.NewTerm(terms[0], field), true
}

func parseOperator(tok string) (*query.Node, error) {
	upper := strings.ToUpper(tok)
	switch upper {
	case "#AND":
		return query.NewOperator(query.And), nil
	case "#OR":
		return query.NewOperator(query.Or), nil
	case "#SUM":
		return query.NewOperator(query.Sum), nil
	case "#WAND":
		return query.NewWeighted(query.WAnd, nil), nil
	case "#WSUM":
		return query.NewWeighted(query.WSum, nil), nil
	case "#SYN":
		return query.NewOperator(query.Syn), nil
	}
	for _, prox := range []query.Kind{query.Near, query.Window} {
		prefix := prox.String() + "/"
		if !strings.HasPrefix(upper, prefix) {
			continue
		}
		n, err := strconv.Atoi(upper[len(prefix):])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid distance in %s", tok)
		}
		return query.NewProximity(prox, n), nil
	}
	return nil, fmt.Errorf("unknown operator %s", tok)
}

func tokenize(text string) []string {
	var (
		tokens []string
		start  = -1
	)
	flush := func(end int) {
		if start >= 0 {
			tokens = append(tokens, text[start:end])
			start = -1
		}
	}
	for i, r := range text {
		switch r {
		case ' ', '\t', '\n', '\r', ',':
			flush(i)
		case '(', ')':
			flush(i)
			tokens = append(tokens, string(r))
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(text))
	return tokens
}

// hasExplicitOperator reports whether text starts with a score-producing
// operator and ends with ')'. Anything else, including a text led by a
// list-producing operator, gets the implicit combinator. Text that starts
// with an operator but holds more than one expression is not wrapped and
// fails to parse.
func hasExplicitOperator(text string) bool {
	if !strings.HasPrefix(text, "#") || !strings.HasSuffix(text, ")") {
		return false
	}
	open := strings.IndexByte(text, '(')
	if open < 0 {
		return false
	}
	node, err := parseOperator(strings.TrimSpace(text[:open]))
	return err == nil && node.Kind.ProducesScore()
}

// Blend combines an original query with its expansion for relevance
// feedback, weighting the original by origWeight.
func Blend(original, expanded string, origWeight float64) string {
	return fmt.Sprintf("#WSUM( %s %s %s %s )",
		strconv.FormatFloat(origWeight, 'g', -1, 64), asExpression(original),
		strconv.FormatFloat(1-origWeight, 'g', -1, 64), asExpression(expanded))
}

func asExpression(q string) string {
	q = strings.TrimSpace(q)
	if hasExplicitOperator(q) {
		return q
	}
	return "#AND( " + q + " )"
}
