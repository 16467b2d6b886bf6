package changelog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWriter_Append(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileWriter(dir, "changelog.jsonl")
	require.NoError(t, err)

	ctx := context.Background()
	e1 := NewEvent(OpIngested, "wq_aaa")
	e2 := NewEvent(OpUpdated, "wq_bbb")
	require.NoError(t, w.Append(ctx, e1))
	require.NoError(t, w.Append(ctx, e2))

	f, err := os.Open(w.Path())
	require.NoError(t, err)
	defer f.Close()

	var got []Event
	s := bufio.NewScanner(f)
	for s.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(s.Bytes(), &e))
		got = append(got, e)
	}
	require.NoError(t, s.Err())
	require.Len(t, got, 2)
	assert.Equal(t, OpIngested, got[0].Op)
	assert.Equal(t, "wq_bbb", got[1].RecordID)
	assert.NotEmpty(t, got[0].ID)
	assert.NotEqual(t, got[0].ID, got[1].ID)
}

type fakeKafka struct {
	calls  int
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeKafka) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafka) Close() error {
	f.closed = true
	return nil
}

func TestKafkaWriter_Append(t *testing.T) {
	fk := &fakeKafka{}
	w := newKafkaWriterWith(fk)

	e := NewEvent(OpEvicted, "wq_123")
	require.NoError(t, w.Append(context.Background(), e))
	require.Len(t, fk.msgs, 1)
	assert.Equal(t, "wq_123", string(fk.msgs[0].Key))

	var decoded Event
	require.NoError(t, json.Unmarshal(fk.msgs[0].Value, &decoded))
	assert.Equal(t, OpEvicted, decoded.Op)

	require.NoError(t, w.Close())
	assert.True(t, fk.closed)
}

func TestKafkaWriter_KeyFallsBackToEventID(t *testing.T) {
	fk := &fakeKafka{}
	w := newKafkaWriterWith(fk)

	e := NewEvent(OpSkipped, "")
	require.NoError(t, w.Append(context.Background(), e))
	assert.Equal(t, e.ID, string(fk.msgs[0].Key))
}

func TestKafkaWriter_Error(t *testing.T) {
	w := newKafkaWriterWith(&fakeKafka{err: errors.New("broker down")})
	err := w.Append(context.Background(), NewEvent(OpIngested, "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestMultiWriter_AttemptsAll(t *testing.T) {
	bad := newKafkaWriterWith(&fakeKafka{err: errors.New("boom")})
	good := &fakeKafka{}
	mw := NewMultiWriter(bad, newKafkaWriterWith(good))

	err := mw.Append(context.Background(), NewEvent(OpIngested, "x"))
	require.Error(t, err)
	assert.Len(t, good.msgs, 1)
}

func TestKafkaWriter_BatchIsOneWrite(t *testing.T) {
	fk := &fakeKafka{}
	w := newKafkaWriterWith(fk)

	events := make([]Event, 250)
	for i := range events {
		events[i] = NewEvent(OpIngested, fmt.Sprintf("wq_%03d", i))
	}
	require.NoError(t, w.Append(context.Background(), events...))
	assert.Equal(t, 1, fk.calls)
	require.Len(t, fk.msgs, 250)
	assert.Equal(t, "wq_249", string(fk.msgs[249].Key))

	require.NoError(t, w.Append(context.Background()))
	assert.Equal(t, 1, fk.calls, "empty append writes nothing")
}

func TestNewKafkaWriter_BatchTimeout(t *testing.T) {
	w := NewKafkaWriter("localhost:9092, ,localhost:9093", "wonquotes.changelog")
	kw, ok := w.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, kafkaBatchTimeout, kw.BatchTimeout)
	assert.Equal(t, "wonquotes.changelog", kw.Topic)
}

func TestFileWriter_AppendBatch(t *testing.T) {
	w, err := NewFileWriter(t.TempDir(), "changelog.jsonl")
	require.NoError(t, err)
	require.NoError(t, w.Append(context.Background(),
		NewEvent(OpIngested, "a"), NewEvent(OpIngested, "b"), NewEvent(OpSkipped, "")))

	data, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	assert.Equal(t, 3, bytes.Count(data, []byte("\n")))
}

func TestMultiWriter_ForwardsBatch(t *testing.T) {
	a, b := &fakeKafka{}, &fakeKafka{}
	mw := NewMultiWriter(newKafkaWriterWith(a), newKafkaWriterWith(b))
	require.NoError(t, mw.Append(context.Background(), NewEvent(OpEvicted, "x"), NewEvent(OpEvicted, "y")))
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Len(t, b.msgs, 2)
}
