// Package trec reads query files and writes ranked runs in the TREC
// submission format.
package trec

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/errors"
)

// EmptyDocID stands in for the document of a query with no matches, so that
// every query appears in the run.
const EmptyDocID = "dummy"

// ReadQueries parses "qid:query text" lines. Blank lines and lines starting
// with '#' followed by a space are skipped; the query text may itself
// contain colons.
func ReadQueries(r io.Reader) ([]executor.Query, error) {
	var queries []executor.Query
	seen := make(map[string]int)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "# ") {
			continue
		}
		id, query, ok := strings.Cut(text, ":")
		id, query = strings.TrimSpace(id), strings.TrimSpace(query)
		if !ok || id == "" || query == "" {
			return nil, fmt.Errorf("query file line %d: expected qid:query, got %q: %w", line, text, apperrors.ErrInvalidInput)
		}
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("query file line %d: query id %s already defined on line %d: %w", line, id, prev, apperrors.ErrInvalidInput)
		}
		seen[id] = line
		queries = append(queries, executor.Query{ID: id, Text: query})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	return queries, nil
}

// ReadExpansions reads a "qid:expanded query" file into a map keyed by
// query id.
func ReadExpansions(r io.Reader) (map[string]string, error) {
	queries, err := ReadQueries(r)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(queries))
	for _, q := range queries {
		out[q.ID] = q.Text
	}
	return out, nil
}

// RunWriter writes "qid Q0 docid rank score tag" lines.
type RunWriter struct {
	w   *bufio.Writer
	tag string
}

func NewRunWriter(w io.Writer, tag string) *RunWriter {
	return &RunWriter{w: bufio.NewWriter(w), tag: tag}
}

// Write emits one line per ranked document, ranks starting at 1, or a
// single placeholder line when docs is empty.
func (rw *RunWriter) Write(queryID string, docs []ranker.ScoredDoc) error {
	if len(docs) == 0 {
		_, err := fmt.Fprintf(rw.w, "%s Q0 %s 1 0 %s\n", queryID, EmptyDocID, rw.tag)
		return err
	}
	for i, d := range docs {
		id := d.ExternalID
		if id == "" {
			id = strconv.Itoa(d.DocID)
		}
		if _, err := fmt.Fprintf(rw.w, "%s Q0 %s %d %s %s\n", queryID, id, i+1, formatScore(d.Score), rw.tag); err != nil {
			return err
		}
	}
	return nil
}

// WriteResult writes an executor result under its query id.
func (rw *RunWriter) WriteResult(result *executor.Result) error {
	return rw.Write(result.QueryID, result.Results)
}

func (rw *RunWriter) Flush() error {
	return rw.w.Flush()
}

func formatScore(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
