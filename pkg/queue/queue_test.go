package queue_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiendalabs/tienda/pkg/queue"
)

// ─── Job types ────────────────────────────────────────────────────────────────

var processed atomic.Int32

type receiptJob struct {
	TicketCode string
}

func (j *receiptJob) Handle() error {
	processed.Add(1)
	return nil
}

type failJob struct{}

func (j *failJob) Handle() error {
	return errors.New("smtp unreachable")
}

func init() {
	queue.StartWorkers(context.Background(), 2)
	queue.Register("*queue_test.receiptJob", func() queue.Job { return &receiptJob{} })
	queue.Register("*queue_test.failJob", func() queue.Job { return &failJob{} })
}

// ─── Tests ────────────────────────────────────────────────────────────────────

func TestDispatchAndProcess(t *testing.T) {
	before := processed.Load()
	require.NoError(t, queue.Dispatch(&receiptJob{TicketCode: "abc-123"}))

	assert.Eventually(t, func() bool {
		return processed.Load() > before
	}, 2*time.Second, 20*time.Millisecond)
}

func TestFailedJobPersisted(t *testing.T) {
	queue.SetMaxRetry(1)
	defer queue.SetMaxRetry(3)

	require.NoError(t, queue.Dispatch(&failJob{}))

	assert.Eventually(t, func() bool {
		return len(queue.FailedJobs()) > 0
	}, 5*time.Second, 50*time.Millisecond)
}

func TestDispatchConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(20)
	for i := 0; i < 20; i++ {
		go func() {
			defer wg.Done()
			queue.Dispatch(&receiptJob{TicketCode: "bulk"}) //nolint:errcheck
		}()
	}
	wg.Wait()
}
