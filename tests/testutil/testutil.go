// Package testutil provides common test utilities for the credit backend.
// It contains an in-memory broker reader, a publisher that loops back into
// it, and polling assertions for asynchronous pipeline tests.
package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/credit/backend/internal/domain/credit"
	"github.com/credit/backend/internal/infrastructure/messaging"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

// topicLog is a single-partition log shared by every reader of a group
type topicLog struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	position  int64
	committed []kafka.Message
	notify    chan struct{}
}

// QueueReader is an in-memory messaging.MessageReader over one partition.
// Pushed messages get increasing offsets; fetches block until one arrives.
// Commits move the group position the way a broker does: committing offset
// N marks everything before N+1 as consumed.
type QueueReader struct {
	topic string
	log   *topicLog

	cursor int64
	closed bool
}

// NewQueueReader creates a reader for one topic
func NewQueueReader(topic string) *QueueReader {
	return &QueueReader{
		topic: topic,
		log:   &topicLog{notify: make(chan struct{})},
	}
}

// Reopen returns a new reader over the same log that starts at the
// committed group position, as a restarted group member would.
func (r *QueueReader) Reopen() *QueueReader {
	r.log.mu.Lock()
	defer r.log.mu.Unlock()
	return &QueueReader{topic: r.topic, log: r.log, cursor: r.log.position}
}

// Push appends a raw payload and returns its offset
func (r *QueueReader) Push(key string, value []byte) int64 {
	r.log.mu.Lock()
	defer r.log.mu.Unlock()

	offset := int64(len(r.log.msgs))
	r.log.msgs = append(r.log.msgs, kafka.Message{
		Topic:  r.topic,
		Offset: offset,
		Key:    []byte(key),
		Value:  value,
		Time:   time.Now(),
	})
	close(r.log.notify)
	r.log.notify = make(chan struct{})
	return offset
}

// FetchMessage implements messaging.MessageReader
func (r *QueueReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	for {
		r.log.mu.Lock()
		if r.cursor < int64(len(r.log.msgs)) {
			msg := r.log.msgs[r.cursor]
			r.cursor++
			r.log.mu.Unlock()
			return msg, nil
		}
		wait := r.log.notify
		r.log.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return kafka.Message{}, ctx.Err()
		}
	}
}

// CommitMessages implements messaging.MessageReader
func (r *QueueReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.log.mu.Lock()
	defer r.log.mu.Unlock()
	for _, m := range msgs {
		r.log.committed = append(r.log.committed, m)
		if m.Offset+1 > r.log.position {
			r.log.position = m.Offset + 1
		}
	}
	return nil
}

// Close implements messaging.MessageReader
func (r *QueueReader) Close() error {
	r.log.mu.Lock()
	defer r.log.mu.Unlock()
	r.closed = true
	return nil
}

// Committed returns the committed offsets in commit order, across reopens
func (r *QueueReader) Committed() []int64 {
	r.log.mu.Lock()
	defer r.log.mu.Unlock()
	offsets := make([]int64, len(r.log.committed))
	for i, m := range r.log.committed {
		offsets[i] = m.Offset
	}
	return offsets
}

// Position returns the offset the group resumes from
func (r *QueueReader) Position() int64 {
	r.log.mu.Lock()
	defer r.log.mu.Unlock()
	return r.log.position
}

// Closed reports whether the consumer released the reader
func (r *QueueReader) Closed() bool {
	r.log.mu.Lock()
	defer r.log.mu.Unlock()
	return r.closed
}

// LoopbackPublisher is a credit.Publisher that encodes transfers exactly as
// the broker publisher does and pushes them into a QueueReader.
type LoopbackPublisher struct {
	Reader *QueueReader
}

// Publish implements credit.Publisher
func (p LoopbackPublisher) Publish(_ context.Context, _ string, transfer credit.Transfer) error {
	payload, err := messaging.EncodeTransfer(transfer)
	if err != nil {
		return err
	}
	p.Reader.Push(transfer.CreditNumber, payload)
	return nil
}

// CreditPayload builds a broker payload; simplesNacional is sent as given
// so callers can exercise string, boolean and numeric encodings.
func CreditPayload(t *testing.T, creditNumber, invoiceNumber string, simplesNacional any) []byte {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"numeroCredito":    creditNumber,
		"numeroNfse":       invoiceNumber,
		"dataConstituicao": "2024-02-25T10:30:00-03:00",
		"valorIssqn":       1500.75,
		"tipoCredito":      "ISSQN",
		"simplesNacional":  simplesNacional,
		"aliquota":         5.0,
		"valorFaturado":    30000.00,
		"valorDeducao":     5000.00,
		"baseCalculo":      25000.00,
	})
	require.NoError(t, err)
	return payload
}

// ContextWithTimeout creates a context with a timeout for tests.
func ContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// RequireEventually polls condition until it holds or the timeout elapses.
func RequireEventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msgAndArgs ...interface{}) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(interval)
	}

	require.Fail(t, "Condition not met within timeout", msgAndArgs...)
}
