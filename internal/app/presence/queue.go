/*
Package presence contains the connected-user registry, per-user outbound
queues, broadcast fan-out, and the ping/idle timeout sweep.

This file defines the Queue struct, the per-user outbound mailbox drained by
the long-poll and websocket transports.
*/
package presence

import (
	"context"
	"sync"
)

// Queue is an ordered, priority-aware mailbox of pending event messages for
// one user. Messages drain by message-type priority first, then FIFO within
// the same priority. Any broadcaster may append while the owning user's poll
// handler concurrently drains; the queue never takes the registry lock.
type Queue struct {
	// mu protects the buckets.
	mu sync.Mutex

	// buckets holds pending messages indexed by message-type priority.
	// Appends preserve arrival order within a bucket.
	buckets [numMessageTypes][]QueuedMessage

	// wake signals the single draining consumer that a message arrived.
	// Buffered so an enqueue never blocks on a consumer that is not waiting.
	wake chan struct{}
}

// NewQueue returns an empty outbound queue.
func NewQueue() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
	}
}

// Enqueue appends msg to its priority bucket and wakes a waiting consumer.
// It never blocks.
func (q *Queue) Enqueue(msg QueuedMessage) {
	if msg.Type < 0 || msg.Type >= numMessageTypes {
		msg.Type = MessageChat
	}

	q.mu.Lock()
	q.buckets[msg.Type] = append(q.buckets[msg.Type], msg)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// DrainAll removes and returns every pending message in delivery order:
// higher-priority types first, FIFO within a type. It returns nil when the
// queue is empty.
func (q *Queue) DrainAll() []QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	total := 0
	for i := range q.buckets {
		total += len(q.buckets[i])
	}
	if total == 0 {
		return nil
	}

	drained := make([]QueuedMessage, 0, total)
	for i := range q.buckets {
		drained = append(drained, q.buckets[i]...)
		q.buckets[i] = nil
	}

	return drained
}

// Poll blocks until at least one message is pending or ctx is done, then
// drains and returns everything in delivery order. A nil slice with ctx.Err()
// means the wait was cancelled with nothing pending.
func (q *Queue) Poll(ctx context.Context) ([]QueuedMessage, error) {
	for {
		if drained := q.DrainAll(); drained != nil {
			return drained, nil
		}

		select {
		case <-ctx.Done():
			// One last drain: a message may have raced the cancellation.
			if drained := q.DrainAll(); drained != nil {
				return drained, nil
			}
			return nil, ctx.Err()
		case <-q.wake:
		}
	}
}

// Len returns the number of pending messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	total := 0
	for i := range q.buckets {
		total += len(q.buckets[i])
	}
	return total
}
