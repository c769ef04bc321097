package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/errors"
)

// Document is one line of a JSON-lines corpus file.
type Document struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// LoadDocuments indexes a stream of JSON documents in order, so the n-th
// document gets docid n-1.
func LoadDocuments(r io.Reader) (*MemoryIndex, error) {
	idx := NewMemoryIndex()
	dec := json.NewDecoder(r)
	for n := 1; ; n++ {
		var doc Document
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return idx, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decoding document %d: %w", n, err)
		}
		if doc.ID == "" || len(doc.Fields) == 0 {
			return nil, fmt.Errorf("document %d: id and fields are required: %w", n, apperrors.ErrInvalidInput)
		}
		idx.AddText(doc.ID, doc.Fields)
	}
}
