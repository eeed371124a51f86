package subproof

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weisyn/subproof/internal/core/subproof/testutil"
)

// ============================================================================
//                               DID 轮换
// ============================================================================

func TestDIDRotator_HistoryIsCapped(t *testing.T) {
	store := NewSubscriptionStore(4)
	now := testutil.NewTestTime()
	sub, err := store.Create(validParams(now), now)
	require.NoError(t, err)

	r := NewDIDRotator(store)
	current := sub.DID
	for i := 0; i < maxRotationHistory+5; i++ {
		next := fmt.Sprintf("did:key:gen-%d", i)
		require.NoError(t, r.Rotate(sub.ID, current, next, []byte{1}, now.Add(time.Duration(i)*time.Second)))
		current = next
	}

	history := r.History(sub.ID)
	require.Len(t, history, maxRotationHistory)
	require.Equal(t, current, history[len(history)-1].NewDID)
	require.Equal(t, "did:key:gen-4", history[0].OldDID)
	require.True(t, history[0].RotatedAt.Before(history[1].RotatedAt))

	r.Forget(sub.ID)
	require.Empty(t, r.History(sub.ID))
}

func TestDIDRotator_ConcurrentRotationsSerialize(t *testing.T) {
	store := NewSubscriptionStore(4)
	now := testutil.NewTestTime()
	sub, err := store.Create(validParams(now), now)
	require.NoError(t, err)

	r := NewDIDRotator(store)

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- r.Rotate(sub.ID, sub.DID, fmt.Sprintf("did:key:racer-%d", i), []byte{1}, now)
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, ErrDIDMismatch)
	}
	require.Equal(t, 1, succeeded)
	require.Len(t, r.History(sub.ID), 1)
}

func TestDIDRotator_ChainedRotationsRecordedInOrder(t *testing.T) {
	store := NewSubscriptionStore(4)
	now := testutil.NewTestTime()
	sub, err := store.Create(validParams(now), now)
	require.NoError(t, err)

	r := NewDIDRotator(store)
	did := func(i int) string {
		if i == 0 {
			return sub.DID
		}
		return fmt.Sprintf("did:key:link-%d", i)
	}

	// 每个 goroutine 负责链上的一环，等前一环提交后才能成功
	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for {
				err := r.Rotate(sub.ID, did(i), did(i+1), []byte{1}, now)
				if err == nil {
					return
				}
				if !errors.Is(err, ErrDIDMismatch) {
					errs <- err
					return
				}
				runtime.Gosched()
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	history := r.History(sub.ID)
	require.Len(t, history, n)
	for i, rec := range history {
		require.Equal(t, did(i), rec.OldDID, "record %d", i)
		require.Equal(t, did(i+1), rec.NewDID, "record %d", i)
	}
}
