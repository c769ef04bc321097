package index

import "fmt"

// Posting is one document's record for one term in one field. Positions are
// 1-based and strictly increasing.
type Posting struct {
	DocID     int   `json:"d"`
	Frequency int   `json:"f"`
	Positions []int `json:"p"`
}

type PostingList []Posting

// InvertedList is the postings of one term (or derived expression) within a
// single field, sorted by strictly increasing DocID.
type InvertedList struct {
	Field              string
	DocFreq            int
	CollectionTermFreq int64
	Postings           PostingList
}

// NewInvertedList builds a list over postings, recomputing df and ctf.
func NewInvertedList(field string, postings PostingList) *InvertedList {
	l := &InvertedList{Field: field, Postings: postings}
	l.DocFreq = len(postings)
	for _, p := range postings {
		l.CollectionTermFreq += int64(p.Frequency)
	}
	return l
}

// Validate checks the ordering invariants of the list.
func (l *InvertedList) Validate() error {
	prev := -1
	for i, p := range l.Postings {
		if p.DocID <= prev {
			return fmt.Errorf("posting %d: docid %d not greater than %d", i, p.DocID, prev)
		}
		prev = p.DocID
		if p.Frequency != len(p.Positions) {
			return fmt.Errorf("docid %d: frequency %d with %d positions", p.DocID, p.Frequency, len(p.Positions))
		}
		last := 0
		for _, pos := range p.Positions {
			if pos <= last {
				return fmt.Errorf("docid %d: position %d not greater than %d", p.DocID, pos, last)
			}
			last = pos
		}
	}
	return nil
}

// TermEntry pairs a term with its postings in one field.
type TermEntry struct {
	Field    string
	Term     string
	Postings PostingList
}

// FieldStats carries the per-field document statistics.
type FieldStats struct {
	Name           string
	DocCount       int
	TotalTermCount int64
	DocLengths     map[int]int
}

// Reader is the read-only index facade consumed by query evaluation.
// A term missing from a field yields an empty list, not an error.
type Reader interface {
	Postings(field, term string) (*InvertedList, error)
	DocLength(field string, docID int) int
	DocCount(field string) int
	TotalTermCount(field string) int64
	CollectionTermFreq(field, term string) int64
	DocFreq(field, term string) int
}

// DocNamer maps internal document ids to external identifiers.
type DocNamer interface {
	ExternalID(docID int) string
}
