// Package model holds the retrieval-model strategies: an explicit Kind plus
// the immutable parameters each scoring formula needs.
package model

import (
	"fmt"
	"strings"
)

// Kind identifies a retrieval model.
type Kind int

const (
	UnrankedBoolean Kind = iota
	RankedBoolean
	BM25
	Indri
)

// Defaults used when a config leaves a parameter unset.
const (
	DefaultK1     = 1.2
	DefaultB      = 0.75
	DefaultK3     = 0.0
	DefaultMu     = 2500.0
	DefaultLambda = 0.4
)

func (k Kind) String() string {
	switch k {
	case UnrankedBoolean:
		return "unrankedboolean"
	case RankedBoolean:
		return "rankedboolean"
	case BM25:
		return "bm25"
	case Indri:
		return "indri"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Ranked reports whether results are ordered by score.
func (k Kind) Ranked() bool {
	return k != UnrankedBoolean
}

// Boolean reports whether k is one of the two Boolean models.
func (k Kind) Boolean() bool {
	return k == UnrankedBoolean || k == RankedBoolean
}

// ParseKind accepts the model names used in config files.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "unrankedboolean", "unranked_boolean", "unranked":
		return UnrankedBoolean, nil
	case "rankedboolean", "ranked_boolean", "ranked":
		return RankedBoolean, nil
	case "bm25":
		return BM25, nil
	case "indri":
		return Indri, nil
	default:
		return 0, fmt.Errorf("unknown retrieval model %q", name)
	}
}

type BM25Params struct {
	K1 float64
	B  float64
	K3 float64
}

type IndriParams struct {
	Mu     float64
	Lambda float64
}

// Model is passed by value into every evaluation; it carries no mutable state.
type Model struct {
	Kind  Kind
	BM25  BM25Params
	Indri IndriParams
}

func NewUnrankedBoolean() Model { return Model{Kind: UnrankedBoolean} }

func NewRankedBoolean() Model { return Model{Kind: RankedBoolean} }

func NewBM25(k1, b, k3 float64) (Model, error) {
	if k1 < 0 {
		return Model{}, fmt.Errorf("bm25 k1 must be >= 0, got %g", k1)
	}
	if b < 0 || b > 1 {
		return Model{}, fmt.Errorf("bm25 b must be in [0,1], got %g", b)
	}
	if k3 < 0 {
		return Model{}, fmt.Errorf("bm25 k3 must be >= 0, got %g", k3)
	}
	return Model{Kind: BM25, BM25: BM25Params{K1: k1, B: b, K3: k3}}, nil
}

func NewIndri(mu, lambda float64) (Model, error) {
	if mu < 0 {
		return Model{}, fmt.Errorf("indri mu must be >= 0, got %g", mu)
	}
	if lambda < 0 || lambda > 1 {
		return Model{}, fmt.Errorf("indri lambda must be in [0,1], got %g", lambda)
	}
	return Model{Kind: Indri, Indri: IndriParams{Mu: mu, Lambda: lambda}}, nil
}

// Signature is a stable text form of the model and its parameters, used in
// cache keys and run metadata.
func (m Model) Signature() string {
	switch m.Kind {
	case BM25:
		return fmt.Sprintf("bm25(k1=%g,b=%g,k3=%g)", m.BM25.K1, m.BM25.B, m.BM25.K3)
	case Indri:
		return fmt.Sprintf("indri(mu=%g,lambda=%g)", m.Indri.Mu, m.Indri.Lambda)
	default:
		return m.Kind.String()
	}
}
