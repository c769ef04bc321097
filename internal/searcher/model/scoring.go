package model

import "math"

// CollectionStats are the per-field statistics a leaf score needs.
type CollectionStats struct {
	DocCount       int
	TotalTermCount int64
}

// AvgDocLen returns the mean document length, or 0 for an empty field.
func (s CollectionStats) AvgDocLen() float64 {
	if s.DocCount == 0 {
		return 0
	}
	return float64(s.TotalTermCount) / float64(s.DocCount)
}

// IDF computes the Robertson-Sparck Jones weight
//
//	idf = ln((N - df + 0.5) / (df + 0.5))
//
// It is negative for terms occurring in more than half the documents.
func IDF(docCount, docFreq int) float64 {
	if docCount == 0 {
		return 0
	}
	n := float64(docFreq)
	return math.Log((float64(docCount) - n + 0.5) / (n + 0.5))
}

// TFWeight is the BM25 length-normalised term frequency
//
//	tf / (tf + k1 * ((1 - b) + b * dl / avgdl))
func (p BM25Params) TFWeight(tf int, docLen int, avgDocLen float64) float64 {
	if tf == 0 || avgDocLen == 0 {
		return 0
	}
	f := float64(tf)
	denominator := f + p.K1*((1-p.B)+p.B*float64(docLen)/avgDocLen)
	if denominator == 0 {
		return 0
	}
	return f / denominator
}

// LeafScore is idf * tf-weight for one term in one document.
func (p BM25Params) LeafScore(tf, docFreq, docLen int, stats CollectionStats) float64 {
	return IDF(stats.DocCount, docFreq) * p.TFWeight(tf, docLen, stats.AvgDocLen())
}

// QueryWeight is the user-term weight (k3+1)*qtf / (k3+qtf).
func (p BM25Params) QueryWeight(qtf int) float64 {
	q := float64(qtf)
	if p.K3+q == 0 {
		return 0
	}
	return (p.K3 + 1) * q / (p.K3 + q)
}

// Background is P(t|C) = ctf / |C|.
func Background(ctf int64, collectionLen int64) float64 {
	if collectionLen == 0 {
		return 0
	}
	return float64(ctf) / float64(collectionLen)
}

// LeafScore is the two-stage smoothed probability
//
//	lambda * (tf + mu*P(t|C)) / (dl + mu) + (1 - lambda) * P(t|C)
//
// Calling it with tf = 0 yields the default score for a document the term
// does not occur in.
func (p IndriParams) LeafScore(tf int, docLen int, background float64) float64 {
	denominator := float64(docLen) + p.Mu
	var pd float64
	if denominator != 0 {
		pd = (float64(tf) + p.Mu*background) / denominator
	}
	return p.Lambda*pd + (1-p.Lambda)*background
}
