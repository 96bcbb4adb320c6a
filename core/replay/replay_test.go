package replay_test

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mksbai/backend-chat-buy-crypto/core/replay"
)

func freshTS() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}

func TestGuard_Check(t *testing.T) {
	t.Parallel()

	t.Run("fresh timestamp and new nonce pass", func(t *testing.T) {
		t.Parallel()
		guard := replay.NewGuard(0)

		assert.NoError(t, guard.Check(freshTS(), "nonce-1"))
	})

	t.Run("missing headers", func(t *testing.T) {
		t.Parallel()
		guard := replay.NewGuard(0)

		assert.ErrorIs(t, guard.Check("", "nonce"), replay.ErrMissingHeaders)
		assert.ErrorIs(t, guard.Check(freshTS(), ""), replay.ErrMissingHeaders)
	})

	t.Run("non-integer timestamp", func(t *testing.T) {
		t.Parallel()
		guard := replay.NewGuard(0)

		assert.ErrorIs(t, guard.Check("not-a-number", "nonce"), replay.ErrInvalidTimestamp)
		assert.ErrorIs(t, guard.Check("12.5", "nonce"), replay.ErrInvalidTimestamp)
	})

	t.Run("stale timestamp is rejected symmetrically", func(t *testing.T) {
		t.Parallel()
		guard := replay.NewGuard(5 * time.Minute)

		past := strconv.FormatInt(time.Now().Add(-6*time.Minute).Unix(), 10)
		future := strconv.FormatInt(time.Now().Add(6*time.Minute).Unix(), 10)

		assert.ErrorIs(t, guard.Check(past, "nonce-past"), replay.ErrStaleTimestamp)
		assert.ErrorIs(t, guard.Check(future, "nonce-future"), replay.ErrStaleTimestamp)
	})

	t.Run("timestamp just inside window passes", func(t *testing.T) {
		t.Parallel()
		guard := replay.NewGuard(5 * time.Minute)

		recent := strconv.FormatInt(time.Now().Add(-4*time.Minute).Unix(), 10)
		assert.NoError(t, guard.Check(recent, "nonce-recent"))
	})

	t.Run("extreme timestamps are rejected without overflowing", func(t *testing.T) {
		t.Parallel()
		guard := replay.NewGuard(5 * time.Minute)

		// 2^55 seconds is parseable but would wrap to zero skew if the
		// bound were computed in nanoseconds.
		farFuture := strconv.FormatInt(1<<55, 10)
		require.ErrorIs(t, guard.Check(farFuture, "nonce-far-future"), replay.ErrStaleTimestamp)

		extremes := []string{
			strconv.FormatInt(math.MaxInt64, 10),
			strconv.FormatInt(math.MinInt64, 10),
			strconv.FormatInt(math.MinInt64+1, 10),
		}
		for _, ts := range extremes {
			assert.ErrorIs(t, guard.Check(ts, "nonce-"+ts), replay.ErrStaleTimestamp)
		}

		// None of the rejected nonces may be left behind.
		assert.Zero(t, guard.Len())
	})

	t.Run("nonce reuse within window is rejected", func(t *testing.T) {
		t.Parallel()
		guard := replay.NewGuard(0)

		require.NoError(t, guard.Check(freshTS(), "shared-nonce"))
		assert.ErrorIs(t, guard.Check(freshTS(), "shared-nonce"), replay.ErrNonceReuse)
	})

	t.Run("rejected request does not register its nonce", func(t *testing.T) {
		t.Parallel()
		guard := replay.NewGuard(5 * time.Minute)

		stale := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
		require.ErrorIs(t, guard.Check(stale, "nonce-x"), replay.ErrStaleTimestamp)

		// Same nonce with a fresh timestamp must pass.
		assert.NoError(t, guard.Check(freshTS(), "nonce-x"))
	})

	t.Run("nonce becomes reusable after the window", func(t *testing.T) {
		t.Parallel()
		guard := replay.NewGuard(time.Second)

		require.NoError(t, guard.Check(freshTS(), "recycled"))
		require.ErrorIs(t, guard.Check(freshTS(), "recycled"), replay.ErrNonceReuse)

		time.Sleep(1100 * time.Millisecond)

		assert.NoError(t, guard.Check(freshTS(), "recycled"))
	})
}

func TestGuard_LazyPurge(t *testing.T) {
	t.Parallel()

	guard := replay.NewGuard(time.Second)

	for i := 0; i < 10; i++ {
		require.NoError(t, guard.Check(freshTS(), fmt.Sprintf("nonce-%d", i)))
	}
	require.Equal(t, 10, guard.Len())

	time.Sleep(1100 * time.Millisecond)

	// The next check sweeps every expired record.
	require.NoError(t, guard.Check(freshTS(), "fresh"))
	assert.Equal(t, 1, guard.Len())
}

func TestGuard_ConcurrentNonceClaims(t *testing.T) {
	t.Parallel()

	guard := replay.NewGuard(0)
	ts := freshTS()

	const attempts = 32
	var wg sync.WaitGroup
	wg.Add(attempts)

	results := make(chan error, attempts)
	for _i := 0; _i < attempts; _i++ {
		go func() {
			defer wg.Done()
			results <- guard.Check(ts, "contested")
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for err := range results {
		if err == nil {
			admitted++
		} else {
			assert.ErrorIs(t, err, replay.ErrNonceReuse)
		}
	}
	assert.Equal(t, 1, admitted, "exactly one claim may win")
}
