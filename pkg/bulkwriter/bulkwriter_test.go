package bulkwriter

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_AllShardsAttemptedDespiteFailures(t *testing.T) {
	w := New(4)

	var attempted int32
	shards := make([]WriteFunc, 10)
	for i := range shards {
		i := i
		shards[i] = func(ctx context.Context) error {
			atomic.AddInt32(&attempted, 1)
			if i%3 == 0 {
				return errors.New("boom")
			}
			return nil
		}
	}

	err := w.Run(context.Background(), shards)
	require.Error(t, err)
	assert.Equal(t, int32(10), attempted)
}

func TestRun_NoErrorWhenAllSucceed(t *testing.T) {
	w := New(2)
	shards := []WriteFunc{
		func(context.Context) error { return nil },
		func(context.Context) error { return nil },
	}
	assert.NoError(t, w.Run(context.Background(), shards))
}
