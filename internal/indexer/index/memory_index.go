package index

import (
	"sort"
	"strconv"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/indexer/tokenizer"
)

type fieldIndex struct {
	postings   map[string]PostingList
	docLengths map[int]int
	totalTerms int64
}

func newFieldIndex() *fieldIndex {
	return &fieldIndex{
		postings:   make(map[string]PostingList),
		docLengths: make(map[int]int),
	}
}

// MemoryIndex is a field-aware positional index held in memory. Documents are
// numbered from 0 in insertion order, so every posting list stays sorted by
// DocID without re-sorting.
type MemoryIndex struct {
	mu          sync.RWMutex
	fields      map[string]*fieldIndex
	externalIDs []string
	size        int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		fields: make(map[string]*fieldIndex),
	}
}

// AddDocument indexes pre-tokenized fields and returns the assigned docid.
func (m *MemoryIndex) AddDocument(externalID string, fields map[string][]tokenizer.Token) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	docID := len(m.externalIDs)
	m.externalIDs = append(m.externalIDs, externalID)

	for field, tokens := range fields {
		if len(tokens) == 0 {
			continue
		}
		fi, ok := m.fields[field]
		if !ok {
			fi = newFieldIndex()
			m.fields[field] = fi
		}

		termData := make(map[string]*Posting)
		order := make([]string, 0, len(tokens))
		for _, token := range tokens {
			p, exists := termData[token.Term]
			if !exists {
				p = &Posting{DocID: docID, Positions: make([]int, 0, 4)}
				termData[token.Term] = p
				order = append(order, token.Term)
			}
			p.Frequency++
			p.Positions = append(p.Positions, token.Position)
		}
		for _, term := range order {
			posting := termData[term]
			sort.Ints(posting.Positions)
			fi.postings[term] = append(fi.postings[term], *posting)
			m.size += int64(len(term) + len(posting.Positions)*8 + 64)
		}
		fi.docLengths[docID] = len(tokens)
		fi.totalTerms += int64(len(tokens))
	}
	return docID
}

// AddText tokenizes each field's raw text and indexes the result.
func (m *MemoryIndex) AddText(externalID string, fields map[string]string) int {
	tokenized := make(map[string][]tokenizer.Token, len(fields))
	for field, text := range fields {
		tokenized[field] = tokenizer.Tokenize(text)
	}
	return m.AddDocument(externalID, tokenized)
}

func (m *MemoryIndex) Postings(field, term string) (*InvertedList, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fi, ok := m.fields[field]
	if !ok {
		return NewInvertedList(field, nil), nil
	}
	src := fi.postings[term]
	out := make(PostingList, len(src))
	for i, p := range src {
		out[i] = Posting{
			DocID:     p.DocID,
			Frequency: p.Frequency,
			Positions: append([]int(nil), p.Positions...),
		}
	}
	return NewInvertedList(field, out), nil
}

func (m *MemoryIndex) DocLength(field string, docID int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if fi, ok := m.fields[field]; ok {
		return fi.docLengths[docID]
	}
	return 0
}

func (m *MemoryIndex) DocCount(field string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if fi, ok := m.fields[field]; ok {
		return len(fi.docLengths)
	}
	return 0
}

func (m *MemoryIndex) TotalTermCount(field string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if fi, ok := m.fields[field]; ok {
		return fi.totalTerms
	}
	return 0
}

func (m *MemoryIndex) CollectionTermFreq(field, term string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fi, ok := m.fields[field]
	if !ok {
		return 0
	}
	var ctf int64
	for _, p := range fi.postings[term] {
		ctf += int64(p.Frequency)
	}
	return ctf
}

func (m *MemoryIndex) DocFreq(field, term string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if fi, ok := m.fields[field]; ok {
		return len(fi.postings[term])
	}
	return 0
}

// ExternalID returns the identifier given at insertion, or the decimal docid
// when it is out of range.
func (m *MemoryIndex) ExternalID(docID int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if docID >= 0 && docID < len(m.externalIDs) {
		return m.externalIDs[docID]
	}
	return strconv.Itoa(docID)
}

// Snapshot is a point-in-time copy of the whole index, ordered by field then
// term, suitable for serialisation.
type Snapshot struct {
	ExternalIDs []string
	Fields      []FieldStats
	Terms       []TermEntry
}

func (m *MemoryIndex) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{ExternalIDs: append([]string(nil), m.externalIDs...)}
	names := make([]string, 0, len(m.fields))
	for name := range m.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fi := m.fields[name]
		lengths := make(map[int]int, len(fi.docLengths))
		for id, l := range fi.docLengths {
			lengths[id] = l
		}
		snap.Fields = append(snap.Fields, FieldStats{
			Name:           name,
			DocCount:       len(fi.docLengths),
			TotalTermCount: fi.totalTerms,
			DocLengths:     lengths,
		})

		terms := make([]string, 0, len(fi.postings))
		for term := range fi.postings {
			terms = append(terms, term)
		}
		sort.Strings(terms)
		for _, term := range terms {
			snap.Terms = append(snap.Terms, TermEntry{
				Field:    name,
				Term:     term,
				Postings: append(PostingList(nil), fi.postings[term]...),
			})
		}
	}
	return snap
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// NumDocs is the number of documents added, across all fields.
func (m *MemoryIndex) NumDocs() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.externalIDs)
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields = make(map[string]*fieldIndex)
	m.externalIDs = nil
	m.size = 0
}
