package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"qhse_dashboard/internal/retry"
	"qhse_dashboard/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	headers = []string{"Project No", "Project Title", "CARs Open"}
	sheetA  = [][]string{headers, {"P-1", "Roof Audit", "2"}}
	sheetB  = [][]string{headers, {"P-1", "Roof Audit", "2"}, {"P-2", "Pipeline", "6"}}
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)}
}

func static(values [][]string) FetcherFunc {
	return func(ctx context.Context) ([][]string, error) { return values, nil }
}

func TestInitialState(t *testing.T) {
	p := New(static(sheetA), nil)
	s := p.Snapshot()
	assert.NotNil(t, s.Data)
	assert.Empty(t, s.Data)
	assert.False(t, s.Loading)
	assert.True(t, s.LastUpdated.IsZero())
}

func TestRefetchPopulatesState(t *testing.T) {
	c := newClock()
	p := New(static(sheetB), schema.Default(), WithClock(c.Now))

	s, err := p.Refetch(context.Background())
	require.NoError(t, err)

	require.Len(t, s.Data, 2)
	assert.Equal(t, "P-2", s.Data[1].ProjectNo)
	assert.Equal(t, 6, s.Data[1].CarsOpen)
	assert.Equal(t, 2, s.Diagnostics.ValidRecords)
	assert.False(t, s.Loading)
	assert.Empty(t, s.Error)
	assert.Equal(t, c.Now(), s.LastUpdated)
	assert.Equal(t, c.Now(), s.DataLastChanged)
	assert.NotEmpty(t, s.FetchID)
	assert.Equal(t, s, p.Snapshot())
}

func TestDataLastChangedMovesOnlyOnChange(t *testing.T) {
	c := newClock()
	var current atomic.Value
	current.Store(sheetA)
	fetcher := FetcherFunc(func(ctx context.Context) ([][]string, error) {
		return current.Load().([][]string), nil
	})
	p := New(fetcher, nil, WithClock(c.Now))

	first, err := p.Refetch(context.Background())
	require.NoError(t, err)

	c.Advance(time.Hour)
	second, err := p.Refetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.DataLastChanged, second.DataLastChanged)
	assert.True(t, second.LastUpdated.After(first.LastUpdated))
	assert.NotEqual(t, first.FetchID, second.FetchID)

	c.Advance(time.Hour)
	current.Store(sheetB)
	third, err := p.Refetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, third.LastUpdated, third.DataLastChanged)
	assert.True(t, third.DataLastChanged.After(second.DataLastChanged))
}

func TestFailedFetchKeepsPreviousData(t *testing.T) {
	c := newClock()
	var fail atomic.Bool
	fetcher := FetcherFunc(func(ctx context.Context) ([][]string, error) {
		if fail.Load() {
			return nil, errors.New("sheet unreachable")
		}
		return sheetB, nil
	})
	p := New(fetcher, nil, WithClock(c.Now))

	good, err := p.Refetch(context.Background())
	require.NoError(t, err)

	fail.Store(true)
	c.Advance(time.Hour)
	bad, err := p.Refetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, "sheet unreachable", bad.Error)
	assert.Len(t, bad.Data, 2)
	assert.Equal(t, good.LastUpdated, bad.LastUpdated)
	assert.Equal(t, good.FetchID, bad.FetchID)

	fail.Store(false)
	recovered, err := p.Refetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recovered.Error)
}

func TestSupersededFetchIsDropped(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	fetcher := FetcherFunc(func(ctx context.Context) ([][]string, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return sheetA, nil
		}
		return sheetB, nil
	})
	p := New(fetcher, nil)

	type outcome struct {
		state State
		err   error
	}
	slow := make(chan outcome, 1)
	go func() {
		s, err := p.Refetch(context.Background())
		slow <- outcome{s, err}
	}()

	<-started
	assert.True(t, p.Snapshot().Loading)

	fast, err := p.Refetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, fast.Data, 2)
	assert.True(t, fast.Loading, "slow fetch still in flight")

	close(release)
	res := <-slow
	assert.ErrorIs(t, res.err, ErrSuperseded)

	final := p.Snapshot()
	assert.Len(t, final.Data, 2)
	assert.Equal(t, fast.FetchID, final.FetchID)
	assert.False(t, final.Loading)
}

func TestCancelledRefetchLeavesScheduledFetchAlone(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	fetcher := FetcherFunc(func(ctx context.Context) ([][]string, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return sheetB, nil
		}
		<-ctx.Done()
		return nil, ctx.Err()
	})
	p := New(fetcher, nil)

	scheduled := make(chan error, 1)
	go func() {
		_, err := p.Refetch(context.Background())
		scheduled <- err
	}()
	<-started

	gone, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Refetch(gone)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load(), "already cancelled caller does not fetch")

	ctx, cancel := context.WithCancel(context.Background())
	manual := make(chan error, 1)
	go func() {
		_, err := p.Refetch(ctx)
		manual <- err
	}()
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-manual, context.Canceled)
	assert.Empty(t, p.Snapshot().Error)

	close(release)
	require.NoError(t, <-scheduled)

	s := p.Snapshot()
	assert.Len(t, s.Data, 2)
	assert.Empty(t, s.Error)
	assert.False(t, s.Loading)
}

func TestOnUpdateCallsDoNotOverlap(t *testing.T) {
	var active, overlaps atomic.Int32
	p := New(static(sheetA), nil, WithOnUpdate(func(State) {
		if active.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
	}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Refetch(context.Background())
		}()
	}
	wg.Wait()
	assert.Zero(t, overlaps.Load())
}

func TestOnUpdateCalledForSuccessOnly(t *testing.T) {
	var updates []State
	var fail atomic.Bool
	fetcher := FetcherFunc(func(ctx context.Context) ([][]string, error) {
		if fail.Load() {
			return nil, errors.New("boom")
		}
		return sheetA, nil
	})
	p := New(fetcher, nil, WithOnUpdate(func(s State) { updates = append(updates, s) }))

	_, err := p.Refetch(context.Background())
	require.NoError(t, err)
	fail.Store(true)
	_, err = p.Refetch(context.Background())
	require.Error(t, err)

	require.Len(t, updates, 1)
	assert.Len(t, updates[0].Data, 1)
}

func TestRefetchUsesRetryConfig(t *testing.T) {
	var calls atomic.Int32
	fetcher := FetcherFunc(func(ctx context.Context) ([][]string, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("temporary")
		}
		return sheetA, nil
	})
	p := New(fetcher, nil, WithRetry(retry.Config{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Timeout:    time.Second,
	}))

	s, err := p.Refetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, s.Data, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRunPollsUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	fetcher := FetcherFunc(func(ctx context.Context) ([][]string, error) {
		calls.Add(1)
		return sheetA, nil
	})
	p := New(fetcher, nil, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Len(t, p.Snapshot().Data, 1)
}
