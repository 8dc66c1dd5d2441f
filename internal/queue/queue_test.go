package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/consolidate"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/graph"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/loader"

	"github.com/rabbitmq/amqp091-go"
)

type published struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

type fakeChannel struct {
	mu        sync.Mutex
	queues    map[string]amqp091.Table
	exchanges []string
	published []published
	failPub   bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{queues: make(map[string]amqp091.Table)}
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exchanges = append(c.exchanges, name)
	return nil
}

func (c *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queues[name] = args
	return amqp091.Queue{Name: name}, nil
}

func (c *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failPub {
		return errors.New("channel closed")
	}
	c.published = append(c.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

type fakeAck struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *fakeAck) Ack(tag uint64, multiple bool) error {
	a.acked++
	return nil
}

func (a *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *fakeAck) Reject(tag uint64, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func delivery(ack *fakeAck, headers amqp091.Table) amqp091.Delivery {
	return amqp091.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		Headers:      headers,
		Body:         []byte(`{"document_id":"doc"}`),
	}
}

func TestSetupQueuesDeclaresRetryAndDLQ(t *testing.T) {
	ch := newFakeChannel()
	if err := SetupQueues(ch, []string{ConvertQueue}); err != nil {
		t.Fatalf("SetupQueues: %v", err)
	}
	for _, name := range []string{"convert_queue", "convert_queue_dlq", "convert_queue_retry"} {
		if _, ok := ch.queues[name]; !ok {
			t.Fatalf("queue %s not declared", name)
		}
	}
	retry := ch.queues["convert_queue_retry"]
	if retry["x-dead-letter-routing-key"] != ConvertQueue {
		t.Fatalf("retry queue does not dead-letter back: %v", retry)
	}
	if len(ch.exchanges) != 1 || ch.exchanges[0] != TopicExchange {
		t.Fatalf("unexpected exchanges %v", ch.exchanges)
	}
}

func TestHandleProcessingError(t *testing.T) {
	tests := []struct {
		name    string
		headers amqp091.Table
		cause   error
		wantKey string
		retries any
	}{
		{"first failure", nil, errors.New("boom"), "convert_queue_retry", int32(1)},
		{"int32 header", amqp091.Table{"x-retries": int32(3)}, errors.New("boom"), "convert_queue_retry", int32(4)},
		{"int64 header", amqp091.Table{"x-retries": int64(5)}, errors.New("boom"), "convert_queue_retry", int32(6)},
		{"exhausted", amqp091.Table{"x-retries": int32(MaxRetries)}, errors.New("boom"), "convert_queue_dlq", int32(MaxRetries)},
		{"bad message", nil, ErrBadMessage, "convert_queue_dlq", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := newFakeChannel()
			ack := &fakeAck{}
			HandleProcessingError(ch, delivery(ack, tt.headers), ConvertQueue, tt.cause)

			if len(ch.published) != 1 {
				t.Fatalf("expected one publish, got %d", len(ch.published))
			}
			got := ch.published[0]
			if got.key != tt.wantKey {
				t.Fatalf("published to %s, want %s", got.key, tt.wantKey)
			}
			if got.msg.Headers["x-retries"] != tt.retries {
				t.Fatalf("x-retries = %#v, want %#v", got.msg.Headers["x-retries"], tt.retries)
			}
			if ack.acked != 1 || ack.nacked != 0 {
				t.Fatalf("expected ack, got acked=%d nacked=%d", ack.acked, ack.nacked)
			}
		})
	}
}

func TestHandleProcessingErrorRequeuesWhenPublishFails(t *testing.T) {
	ch := newFakeChannel()
	ch.failPub = true
	ack := &fakeAck{}
	HandleProcessingError(ch, delivery(ack, nil), ConvertQueue, errors.New("boom"))
	if ack.nacked != 1 || !ack.requeue || ack.acked != 0 {
		t.Fatalf("expected requeueing nack, got %+v", ack)
	}
}

type fakeConverter struct {
	docs   []string
	result *graph.RunResult
	err    error
}

func (c *fakeConverter) ConvertDocument(ctx context.Context, documentID string, source loader.ChunkSource) (*graph.RunResult, error) {
	c.docs = append(c.docs, documentID)
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

type noFiles struct{}

func (noFiles) GetFile(ctx context.Context, path string) ([]byte, error) {
	return nil, errors.New("not found")
}

func runeCount(s string) int { return len([]rune(s)) }

func newTestWorker(conv Converter, ch Channel) *Worker {
	return NewWorker(NewWorkerParams{
		Converter: conv,
		Files:     func() loader.FileLoader { return noFiles{} },
		Channel:   ch,
		Count:     runeCount,
	})
}

func TestProcessConvertMessagePublishesResult(t *testing.T) {
	conv := &fakeConverter{result: &graph.RunResult{
		DocumentID:  "doc",
		Stats:       consolidate.RunStats{ChunksTotal: 4, ChunksProcessed: 4},
		Ambiguities: []common.Ambiguity{{ID: "a1"}},
		Processes:   []*common.Process{{ID: "p1"}, {ID: "p2"}},
	}}
	ch := newFakeChannel()
	w := newTestWorker(conv, ch)

	if err := w.ProcessConvertMessage(context.Background(), []byte(`{"document_id":"doc","correlation_id":"c1"}`)); err != nil {
		t.Fatalf("ProcessConvertMessage: %v", err)
	}
	if len(conv.docs) != 1 || conv.docs[0] != "doc" {
		t.Fatalf("converter called with %v", conv.docs)
	}
	if len(ch.published) != 1 {
		t.Fatalf("expected one notification, got %d", len(ch.published))
	}
	p := ch.published[0]
	if p.exchange != TopicExchange || p.key != TopicConverted {
		t.Fatalf("published to %s/%s", p.exchange, p.key)
	}
	var out ConvertedMsg
	if err := json.Unmarshal(p.msg.Body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.DocumentID != "doc" || out.CorrelationID != "c1" || out.Processes != 2 || out.OpenQuestions != 1 || out.Stats.ChunksTotal != 4 {
		t.Fatalf("unexpected notification %+v", out)
	}
}

func TestProcessConvertMessageErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		convErr error
		bad     bool
	}{
		{"not json", `{`, nil, true},
		{"missing document", `{"file_key":"x.pdf"}`, nil, true},
		{"conversion fails", `{"document_id":"doc"}`, errors.New("store down"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := newFakeChannel()
			w := newTestWorker(&fakeConverter{err: tt.convErr}, ch)
			err := w.ProcessConvertMessage(context.Background(), []byte(tt.body))
			if err == nil {
				t.Fatalf("expected error")
			}
			if errors.Is(err, ErrBadMessage) != tt.bad {
				t.Fatalf("ErrBadMessage = %v, want %v (%v)", !tt.bad, tt.bad, err)
			}
			if len(ch.published) != 0 {
				t.Fatalf("failed conversion must not publish")
			}
		})
	}
}

func TestParseConvertMsgDefaultsFileKey(t *testing.T) {
	msg, err := parseConvertMsg([]byte(`{"document_id":"doc"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.FileKey != "documents/doc.pdf" {
		t.Fatalf("FileKey = %q", msg.FileKey)
	}
}

type staleRuns []graph.DocumentStatus

func (s staleRuns) StaleRuns(ctx context.Context, before time.Time) ([]graph.DocumentStatus, error) {
	return s, nil
}

func TestRecoverStaleRuns(t *testing.T) {
	ch := newFakeChannel()
	runs := staleRuns{{DocumentID: "a", NextChunk: 3}, {DocumentID: "b"}}
	if err := RecoverStaleRuns(context.Background(), runs, ch, time.Minute); err != nil {
		t.Fatalf("RecoverStaleRuns: %v", err)
	}
	if len(ch.published) != 2 {
		t.Fatalf("expected 2 requeued runs, got %d", len(ch.published))
	}
	var msg ConvertMsg
	if err := json.Unmarshal(ch.published[0].msg.Body, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ch.published[0].key != ConvertQueue || msg.DocumentID != "a" {
		t.Fatalf("unexpected requeue %+v to %s", msg, ch.published[0].key)
	}
}
