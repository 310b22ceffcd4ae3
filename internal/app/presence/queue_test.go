package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFOWithinPriority(t *testing.T) {
	t.Parallel()

	q := NewQueue()

	q.Enqueue(QueuedMessage{Type: MessageChat, Payload: Fields{"n": 1}})
	q.Enqueue(QueuedMessage{Type: MessageChat, Payload: Fields{"n": 2}})
	q.Enqueue(QueuedMessage{Type: MessageChat, Payload: Fields{"n": 3}})

	drained := q.DrainAll()
	require.Len(t, drained, 3)
	assert.Equal(t, 1, drained[0].Payload["n"])
	assert.Equal(t, 2, drained[1].Payload["n"])
	assert.Equal(t, 3, drained[2].Payload["n"])
}

func TestQueue_HigherPriorityOvertakes(t *testing.T) {
	t.Parallel()

	q := NewQueue()

	q.Enqueue(QueuedMessage{Type: MessageChat, Payload: Fields{"n": 1}})
	q.Enqueue(QueuedMessage{Type: MessagePlayerEvent, Payload: Fields{"n": 2}})
	q.Enqueue(QueuedMessage{Type: MessageKicked, Payload: Fields{"n": 3}})

	drained := q.DrainAll()
	require.Len(t, drained, 3)

	// Kicked overtakes everything, player events overtake chat.
	assert.Equal(t, MessageKicked, drained[0].Type)
	assert.Equal(t, MessagePlayerEvent, drained[1].Type)
	assert.Equal(t, MessageChat, drained[2].Type)
}

func TestQueue_DrainAllEmpty(t *testing.T) {
	t.Parallel()

	q := NewQueue()

	assert.Nil(t, q.DrainAll())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_PollReturnsPending(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	q.Enqueue(QueuedMessage{Type: MessageChat, Payload: Fields{"n": 1}})

	drained, err := q.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, drained, 1)
}

func TestQueue_PollWakesOnEnqueue(t *testing.T) {
	t.Parallel()

	q := NewQueue()

	done := make(chan []QueuedMessage, 1)
	go func() {
		drained, err := q.Poll(context.Background())
		if err != nil {
			done <- nil
			return
		}
		done <- drained
	}()

	time.Sleep(20 * time.Millisecond)
	q.Enqueue(QueuedMessage{Type: MessageChat, Payload: Fields{"n": 1}})

	select {
	case drained := <-done:
		require.Len(t, drained, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("Poll did not wake after enqueue")
	}
}

func TestQueue_PollCancelled(t *testing.T) {
	t.Parallel()

	q := NewQueue()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	drained, err := q.Poll(ctx)
	assert.Nil(t, drained)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_ConcurrentEnqueueDrain(t *testing.T) {
	t.Parallel()

	q := NewQueue()

	const messages = 200
	go func() {
		for i := 0; i < messages; i++ {
			q.Enqueue(QueuedMessage{Type: MessageChat, Payload: Fields{"n": i}})
		}
	}()

	received := 0
	deadline := time.After(5 * time.Second)
	for received < messages {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		drained, err := q.Poll(ctx)
		cancel()
		require.NoError(t, err)

		// FIFO must hold across separate drains of the same priority class.
		for _, msg := range drained {
			require.Equal(t, received, msg.Payload["n"])
			received++
		}

		select {
		case <-deadline:
			t.Fatalf("only received %d of %d messages", received, messages)
		default:
		}
	}
}
