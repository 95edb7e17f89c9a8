package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"flux-gateway/middleware/admission/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowStart(t *testing.T) {
	assert.Equal(t, int64(1_700_000_000), WindowStart(time.Unix(1_700_000_000, 0), 10*time.Second))
	assert.Equal(t, int64(1_700_000_000), WindowStart(time.Unix(1_700_000_009, 999), 10*time.Second))
	assert.Equal(t, int64(1_700_000_010), WindowStart(time.Unix(1_700_000_010, 0), 10*time.Second))
	// janela menor que 1s vira 1s
	assert.Equal(t, int64(42), WindowStart(time.Unix(42, 500), time.Millisecond))
}

func TestWindowStartProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("bucket contains now and is aligned", prop.ForAll(
		func(sec int64, windowSec int64) bool {
			start := WindowStart(time.Unix(sec, 0), time.Duration(windowSec)*time.Second)
			return start%windowSec == 0 && start <= sec && sec < start+windowSec
		},
		gen.Int64Range(0, 4_000_000_000),
		gen.Int64Range(1, 3600),
	))

	properties.TestingRun(t)
}

func TestWindowCounter_KeyAndHorizon(t *testing.T) {
	store := newFakeCounter()
	c := WindowCounter{Store: store, Horizon: 60 * time.Second}

	n, err := c.IncrementAndGet(context.Background(), "10.0.0.1", time.Unix(1_700_000_004, 0), 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	assert.Equal(t, uint64(1), store.counts["10.0.0.1-1700000000"])
	assert.Equal(t, 60*time.Second, store.ttls["10.0.0.1-1700000000"])
}

func TestWindowCounter_DefaultHorizon(t *testing.T) {
	store := newFakeCounter()
	c := WindowCounter{Store: store}
	_, err := c.IncrementAndGet(context.Background(), "k", time.Unix(0, 0), 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, DefaultCleanupHorizon, store.ttls["k-0"])
}

func TestWindowCounter_ConcurrentIncrementsSumExactly(t *testing.T) {
	store := newFakeCounter()
	c := WindowCounter{Store: store}
	now := time.Unix(1_700_000_000, 0)

	const tasks, perTask = 8, 25
	var wg sync.WaitGroup
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perTask; j++ {
				_, err := c.IncrementAndGet(context.Background(), "k", now, 10*time.Second)
				if err != nil {
					t.Errorf("increment: %v", err)
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(tasks*perTask), store.counts[WindowKey("k", WindowStart(now, 10*time.Second))])
}

func TestWindowCounter_Errors(t *testing.T) {
	_, err := WindowCounter{}.IncrementAndGet(context.Background(), "k", time.Now(), time.Second)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	store := newFakeCounter()
	store.err = errBoom
	_, err = WindowCounter{Store: store}.IncrementAndGet(context.Background(), "k", time.Now(), time.Second)
	assert.ErrorIs(t, err, errBoom)
}
