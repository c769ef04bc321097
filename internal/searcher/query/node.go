// Package query defines the structured query operator tree. Nodes are a
// tagged variant: Kind selects the operator, and evaluation dispatches on it.
package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind enumerates the operators of the query language.
type Kind int

const (
	Term Kind = iota
	Syn
	Near
	Window
	Score
	And
	Or
	Sum
	WAnd
	WSum
)

var kindNames = [...]string{
	Term:   "TERM",
	Syn:    "#SYN",
	Near:   "#NEAR",
	Window: "#WINDOW",
	Score:  "#SCORE",
	And:    "#AND",
	Or:     "#OR",
	Sum:    "#SUM",
	WAnd:   "#WAND",
	WSum:   "#WSUM",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ProducesList reports whether nodes of this kind evaluate to an inverted list.
func (k Kind) ProducesList() bool {
	switch k {
	case Term, Syn, Near, Window:
		return true
	default:
		return false
	}
}

// ProducesScore reports whether nodes of this kind evaluate to a score list.
func (k Kind) ProducesScore() bool {
	return !k.ProducesList()
}

// Weighted reports whether arguments carry explicit weights.
func (k Kind) Weighted() bool {
	return k == WAnd || k == WSum
}

// Proximity reports whether the kind carries a distance bound.
func (k Kind) Proximity() bool {
	return k == Near || k == Window
}

// Node is one operator in a query tree. Term leaves use Term and Field; every
// other kind uses Args. Weighted kinds keep len(Weights) == len(Args);
// proximity kinds carry Distance > 0.
type Node struct {
	Kind     Kind
	Args     []*Node
	Weights  []float64
	Distance int
	Term     string
	Field    string
}

func NewTerm(term, field string) *Node {
	return &Node{Kind: Term, Term: term, Field: field}
}

// NewOperator builds an unweighted, non-proximity operator over args.
func NewOperator(kind Kind, args ...*Node) *Node {
	return &Node{Kind: kind, Args: args}
}

func NewProximity(kind Kind, distance int, args ...*Node) *Node {
	return &Node{Kind: kind, Distance: distance, Args: args}
}

// NewWeighted builds a WAnd or WSum node; weights and args pair by index.
func NewWeighted(kind Kind, weights []float64, args ...*Node) *Node {
	return &Node{Kind: kind, Weights: weights, Args: args}
}

// NewScore wraps a list-producing node so it can stand where a score is needed.
func NewScore(arg *Node) *Node {
	return &Node{Kind: Score, Args: []*Node{arg}}
}

// AddArg appends a child. Weighted nodes must be given exactly one weight.
func (n *Node) AddArg(arg *Node, weight ...float64) error {
	if n.Kind == Term {
		return fmt.Errorf("term %q cannot take arguments", n.Term)
	}
	if n.Kind.Weighted() {
		if len(weight) != 1 {
			return fmt.Errorf("%s argument needs exactly one weight", n.Kind)
		}
		n.Weights = append(n.Weights, weight[0])
	} else if len(weight) != 0 {
		return fmt.Errorf("%s does not take weights", n.Kind)
	}
	n.Args = append(n.Args, arg)
	return nil
}

// Validate checks the structural invariants of the subtree rooted at n.
func (n *Node) Validate() error {
	switch {
	case n.Kind == Term:
		if n.Term == "" {
			return fmt.Errorf("empty term")
		}
		return nil
	case len(n.Args) == 0:
		return fmt.Errorf("%s has no arguments", n.Kind)
	case n.Kind == Score && len(n.Args) != 1:
		return fmt.Errorf("#SCORE takes exactly one argument, got %d", len(n.Args))
	case n.Kind.Weighted() && len(n.Weights) != len(n.Args):
		return fmt.Errorf("%s has %d weights for %d arguments", n.Kind, len(n.Weights), len(n.Args))
	case n.Kind.Proximity() && n.Distance <= 0:
		return fmt.Errorf("%s distance must be positive, got %d", n.Kind, n.Distance)
	}
	for _, arg := range n.Args {
		if n.Kind.ProducesList() && !arg.Kind.ProducesList() {
			return fmt.Errorf("%s cannot take score-producing argument %s", n.Kind, arg.Kind)
		}
		if n.Kind == Score && !arg.Kind.ProducesList() {
			return fmt.Errorf("#SCORE argument must be list-producing, got %s", arg.Kind)
		}
		if err := arg.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// String renders the canonical form of the tree, e.g.
// "#AND( a.body #NEAR/2( b.body c.body ) )".
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	if n.Kind == Term {
		b.WriteString(n.Term)
		if n.Field != "" {
			b.WriteByte('.')
			b.WriteString(n.Field)
		}
		return
	}
	b.WriteString(n.Kind.String())
	if n.Kind.Proximity() {
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(n.Distance))
	}
	b.WriteString("(")
	for i, arg := range n.Args {
		b.WriteByte(' ')
		if n.Kind.Weighted() && i < len(n.Weights) {
			b.WriteString(strconv.FormatFloat(n.Weights[i], 'g', -1, 64))
			b.WriteByte(' ')
		}
		arg.write(b)
	}
	b.WriteString(" )")
}

// Terms returns the leaves of the tree in left-to-right order.
func (n *Node) Terms() []*Node {
	if n.Kind == Term {
		return []*Node{n}
	}
	var out []*Node
	for _, arg := range n.Args {
		out = append(out, arg.Terms()...)
	}
	return out
}
