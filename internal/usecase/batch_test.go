package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestBatchProcess_KeepsInputOrder(t *testing.T) {
	// later items finish first
	process := func(_ context.Context, x int) (string, error) {
		time.Sleep(time.Duration(6-x) * 10 * time.Millisecond)
		return fmt.Sprintf("r%d", x), nil
	}

	var progress [][2]int
	results, err := BatchProcess(context.Background(), []int{1, 2, 3, 4, 5}, process, BatchOptions{
		Concurrency: 2,
		OnProgress: func(completed, total int) {
			progress = append(progress, [2]int{completed, total})
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2", "r3", "r4", "r5"}, results)
	assert.Equal(t, [][2]int{{1, 5}, {2, 5}, {3, 5}, {4, 5}, {5, 5}}, progress)
}

func TestBatchProcess_CapsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	process := func(_ context.Context, x int) (int, error) {
		n := running.Inc()
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Dec()
		return x, nil
	}

	items := make([]int, 20)
	_, err := BatchProcess(context.Background(), items, process, BatchOptions{Concurrency: 3})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestBatchProcess_FirstErrorFailsBatch(t *testing.T) {
	boom := errors.New("boom")
	process := func(_ context.Context, x int) (int, error) {
		if x == 3 {
			return 0, boom
		}
		return x, nil
	}

	results, err := BatchProcess(context.Background(), []int{1, 2, 3, 4, 5}, process, BatchOptions{Concurrency: 2})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, results)
}

func TestBatchProcess_AbortsBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var started atomic.Int32
	process := func(_ context.Context, x int) (int, error) {
		started.Inc()
		if x == 2 {
			cancel()
		}
		return x, nil
	}

	results, err := BatchProcess(ctx, []int{1, 2, 3, 4, 5}, process, BatchOptions{Concurrency: 2})
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
	assert.Equal(t, int32(2), started.Load(), "the running chunk completes, later chunks never start")
}

func TestBatchProcess_Empty(t *testing.T) {
	results, err := BatchProcess(context.Background(), []int{}, func(_ context.Context, x int) (int, error) {
		return x, nil
	}, BatchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}
