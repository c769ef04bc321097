package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCarriesRequestID(t *testing.T) {
	msg, err := encode(Event{Key: "q1", Value: map[string]int{"hits": 3}, RequestID: "req-42"})
	require.NoError(t, err)
	assert.Equal(t, []byte("q1"), msg.Key)
	assert.JSONEq(t, `{"hits":3}`, string(msg.Value))
	assert.Equal(t, "req-42", HeaderValue(msg.Headers, RequestIDHeader))

	msg, err = encode(Event{Key: "q2", Value: "x"})
	require.NoError(t, err)
	assert.Empty(t, msg.Headers)
}

func TestEncodeRejectsUnmarshalableValue(t *testing.T) {
	_, err := encode(Event{Key: "bad", Value: make(chan int)})
	assert.Error(t, err)
}

func TestHeaderValue(t *testing.T) {
	headers := []kafka.Header{{Key: "a", Value: []byte("1")}, {Key: RequestIDHeader, Value: []byte("r")}}
	assert.Equal(t, "r", HeaderValue(headers, RequestIDHeader))
	assert.Equal(t, "", HeaderValue(headers, "missing"))
}

func TestDecodeJSON(t *testing.T) {
	type request struct {
		ID    string `json:"id"`
		Query string `json:"query"`
	}
	got, err := DecodeJSON[request]([]byte(`{"id":"7","query":"#AND(a b)"}`))
	require.NoError(t, err)
	assert.Equal(t, request{ID: "7", Query: "#AND(a b)"}, got)

	_, err = DecodeJSON[request]([]byte(`{`))
	assert.Error(t, err)
}
