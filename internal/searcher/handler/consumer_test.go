package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/model"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/logger"
)

type replySink struct {
	events []kafka.Event
	err    error
}

func (s *replySink) Publish(_ context.Context, e kafka.Event) error {
	s.events = append(s.events, e)
	return s.err
}

func newConsumer(t *testing.T, sink *replySink) (*RequestConsumer, *recorder) {
	t.Helper()
	idx := index.NewMemoryIndex()
	idx.AddText("d1", map[string]string{"body": "apple banana"})
	idx.AddText("d2", map[string]string{"body": "banana cherry"})
	idx.AddText("d3", map[string]string{"body": "cherry durian"})
	exec := executor.New(idx, model.NewRankedBoolean(), parser.New(tokenizer.Analyzer{}, parser.DefaultField))
	rec := &recorder{}
	return NewRequestConsumer(exec, sink, rec, nil, 10, 2), rec
}

func TestRequestConsumerRepliesWithResult(t *testing.T) {
	sink := &replySink{}
	c, events := newConsumer(t, sink)
	ctx := logger.WithRequestID(context.Background(), "req-9")

	require.NoError(t, c.Handle(ctx, []byte("k"), []byte(`{"id":"q1","query":"banana cherry","limit":50}`)))

	require.Len(t, sink.events, 1)
	assert.Equal(t, "q1", sink.events[0].Key)
	assert.Equal(t, "req-9", sink.events[0].RequestID)
	reply := sink.events[0].Value.(QueryReply)
	require.NotNil(t, reply.Result)
	assert.Equal(t, "q1", reply.Result.QueryID)
	assert.Equal(t, 3, reply.Result.TotalHits)
	// The requested limit is clamped to maxResults.
	assert.Len(t, reply.Result.Results, 2)

	require.Len(t, events.events, 1)
	assert.Equal(t, analytics.EventQuery, events.events[0].Type)
	assert.Equal(t, "kafka", events.events[0].Source)
	assert.Equal(t, "req-9", events.events[0].RequestID)
}

func TestRequestConsumerRepliesWithError(t *testing.T) {
	sink := &replySink{}
	c, events := newConsumer(t, sink)

	require.NoError(t, c.Handle(context.Background(), []byte("q2"), []byte(`{"query":"#AND(apple"}`)))

	require.Len(t, sink.events, 1)
	reply := sink.events[0].Value.(QueryReply)
	assert.Equal(t, "q2", reply.ID)
	assert.Nil(t, reply.Result)
	assert.Contains(t, reply.Error, "parse error")
	assert.Equal(t, analytics.EventQueryError, events.events[0].Type)
}

func TestRequestConsumerDropsMalformed(t *testing.T) {
	sink := &replySink{}
	c, _ := newConsumer(t, sink)
	require.NoError(t, c.Handle(context.Background(), nil, []byte(`not json`)))
	assert.Empty(t, sink.events)
}

func TestRequestConsumerReturnsPublishFailure(t *testing.T) {
	boom := errors.New("broker down")
	c, _ := newConsumer(t, &replySink{err: boom})
	err := c.Handle(context.Background(), nil, []byte(`{"id":"q3","query":"apple"}`))
	assert.ErrorIs(t, err, boom)
}
