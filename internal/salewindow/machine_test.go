package salewindow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-gin-waiting-room/internal/model"
	"go-gin-waiting-room/internal/salewindow"
	apperrors "go-gin-waiting-room/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeQueue struct {
	mu        sync.Mutex
	clock     salewindow.Clock
	positions []int
	errs      []error
	joins     int
	polls     int
	grants    int
	lookups   int
	existing  *model.PurchaseWindow
	lookupErr error
	lastCtx   context.Context
	onCall    func()
	window    time.Duration
}

func newFakeQueue(clock salewindow.Clock, positions ...int) *fakeQueue {
	return &fakeQueue{clock: clock, positions: positions, window: 10 * time.Minute}
}

func (q *fakeQueue) next(ctx context.Context) (model.QueuePosition, error) {
	q.mu.Lock()
	q.lastCtx = ctx
	hook := q.onCall
	var err error
	if len(q.errs) > 0 {
		err = q.errs[0]
		q.errs = q.errs[1:]
	}
	pos := 0
	if err == nil && len(q.positions) > 0 {
		pos = q.positions[0]
		if len(q.positions) > 1 {
			q.positions = q.positions[1:]
		}
	}
	q.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return model.QueuePosition{}, err
	}
	return model.NewQueuePosition(pos, 10, q.clock.Now()), nil
}

func (q *fakeQueue) Join(ctx context.Context, _ uuid.UUID, _ string) (model.QueuePosition, error) {
	q.mu.Lock()
	q.joins++
	q.mu.Unlock()
	return q.next(ctx)
}

func (q *fakeQueue) Position(ctx context.Context, _ uuid.UUID, _ string) (model.QueuePosition, error) {
	q.mu.Lock()
	q.polls++
	q.mu.Unlock()
	return q.next(ctx)
}

func (q *fakeQueue) GrantWindow(_ context.Context, _ uuid.UUID, _ string) (model.PurchaseWindow, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.grants++
	now := q.clock.Now()
	return model.PurchaseWindow{GrantedAt: now, ExpiresAt: now.Add(q.window)}, nil
}

func (q *fakeQueue) Window(_ context.Context, _ uuid.UUID, _ string) (model.PurchaseWindow, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lookups++
	if q.lookupErr != nil {
		return model.PurchaseWindow{}, q.lookupErr
	}
	if q.existing == nil {
		return model.PurchaseWindow{}, apperrors.ErrNoPurchaseWindow
	}
	return *q.existing, nil
}

func (q *fakeQueue) counts() (joins, polls, grants int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.joins, q.polls, q.grants
}

type recorder struct {
	mu        sync.Mutex
	snapshots []salewindow.Snapshot
}

func (r *recorder) emit(s salewindow.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func (r *recorder) all() []salewindow.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]salewindow.Snapshot(nil), r.snapshots...)
}

func (r *recorder) last() salewindow.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshots[len(r.snapshots)-1]
}

func (r *recorder) countState(state salewindow.State) int {
	n := 0
	for _, s := range r.all() {
		if s.State == state {
			n++
		}
	}
	return n
}

func testConfig() salewindow.Config {
	cfg := salewindow.DefaultConfig()
	cfg.Jitter = func() float64 { return 0 }
	return cfg
}

func newTestMachine(t *testing.T, positions ...int) (*salewindow.Machine, *salewindow.ManualClock, *fakeQueue, *recorder) {
	t.Helper()
	clock := salewindow.NewManualClock(baseTime)
	q := newFakeQueue(clock, positions...)
	rec := &recorder{}
	m := salewindow.NewMachine(uuid.New(), "user-1", q, clock, testConfig(), rec.emit)
	t.Cleanup(m.Close)
	return m, clock, q, rec
}

// reachPurchaseReady 開賣後依序收到 positions，最後一個必須是 1
func reachPurchaseReady(t *testing.T, positions ...int) (*salewindow.Machine, *salewindow.ManualClock, *fakeQueue, *recorder) {
	t.Helper()
	m, clock, q, rec := newTestMachine(t, positions...)
	start := baseTime
	require.NoError(t, m.Start(context.Background(), &start))
	clock.Advance(0)
	for i := 1; i < len(positions); i++ {
		clock.Advance(5 * time.Second)
	}
	require.Equal(t, salewindow.StatePurchaseReady, m.State())
	return m, clock, q, rec
}

func TestMachine_Countdown(t *testing.T) {
	t.Run("Success - breakdown and notices", func(t *testing.T) {
		m, clock, _, rec := newTestMachine(t)
		start := baseTime.Add(65 * time.Second)

		// 執行
		require.NoError(t, m.Start(context.Background(), &start))

		// 驗證結果
		first := rec.last()
		assert.Equal(t, salewindow.StateClosed, first.State)
		assert.Equal(t, "00:00:01:05", first.Display)
		assert.Equal(t, salewindow.NoticeStartingSoon, first.Notice)
		assert.False(t, first.Pulse)

		clock.Advance(time.Second)
		assert.Equal(t, "00:00:01:04", rec.last().Display)
		assert.True(t, rec.last().Pulse)

		clock.Advance(4 * time.Second)
		last := rec.last()
		assert.Equal(t, int64(60000), last.Countdown.Total)
		assert.Equal(t, salewindow.NoticeLessThanMinute, last.Notice)
		assert.True(t, last.Pulse)
	})

	t.Run("Success - enters queue when countdown reaches zero", func(t *testing.T) {
		m, clock, q, rec := newTestMachine(t, 42)
		start := baseTime.Add(2 * time.Second)
		require.NoError(t, m.Start(context.Background(), &start))

		clock.Advance(2 * time.Second)

		assert.Equal(t, salewindow.StateQueued, m.State())
		joins, _, _ := q.counts()
		assert.Equal(t, 1, joins)
		var navigated bool
		for _, s := range rec.all() {
			if s.Navigate == salewindow.NavigateQueue {
				navigated = true
			}
		}
		assert.True(t, navigated)
	})

	t.Run("Success - already open", func(t *testing.T) {
		m, _, _, rec := newTestMachine(t, 42)
		start := baseTime.Add(-time.Minute)

		require.NoError(t, m.Start(context.Background(), &start))

		assert.Equal(t, salewindow.StateQueued, m.State())
		assert.Equal(t, salewindow.NavigateQueue, rec.last().Navigate)
	})

	t.Run("Failed - missing sales start", func(t *testing.T) {
		m, clock, _, rec := newTestMachine(t)

		err := m.Start(context.Background(), nil)
		require.ErrorIs(t, err, apperrors.ErrSalesStartMissing)

		err = m.Start(context.Background(), &time.Time{})
		require.ErrorIs(t, err, apperrors.ErrSalesStartMissing)

		assert.Equal(t, 0, clock.Pending())
		assert.Empty(t, rec.all())
		assert.Equal(t, salewindow.StateClosed, m.State())
	})
}

func TestMachine_Queue(t *testing.T) {
	t.Run("Success - position sequence reaches purchase window", func(t *testing.T) {
		m, clock, q, rec := newTestMachine(t, 42, 17, 1)
		start := baseTime
		require.NoError(t, m.Start(context.Background(), &start))

		clock.Advance(0)
		require.Equal(t, 42, rec.last().Position.Position)
		assert.Equal(t, 5, rec.last().Position.EstimatedWaitMinutes)

		clock.Advance(5 * time.Second)
		require.Equal(t, 17, rec.last().Position.Position)
		assert.Equal(t, salewindow.StateQueued, m.State())

		clock.Advance(5 * time.Second)
		readyAt := baseTime.Add(10 * time.Second)

		// 驗證結果
		assert.Equal(t, salewindow.StatePurchaseReady, m.State())
		_, _, grants := q.counts()
		assert.Equal(t, 1, grants)
		last := rec.last()
		require.NotNil(t, last.Window)
		assert.Equal(t, readyAt, last.Window.GrantedAt)
		assert.Equal(t, readyAt.Add(10*time.Minute), last.Window.ExpiresAt)
		assert.Equal(t, 600, last.SecondsLeft)
		assert.Equal(t, 0, last.Position.EstimatedWaitMinutes)
	})

	t.Run("Success - purchase window entered exactly once", func(t *testing.T) {
		m, clock, q, rec := reachPurchaseReady(t, 3, 1)

		m.UpdatePosition(model.NewQueuePosition(1, 10, clock.Now()))
		m.UpdatePosition(model.NewQueuePosition(1, 10, clock.Now()))
		clock.Advance(30 * time.Second)

		_, polls, grants := q.counts()
		assert.Equal(t, 1, grants)
		assert.Equal(t, 1, polls)
		var readyTransitions int
		prev := salewindow.StateClosed
		for _, s := range rec.all() {
			if s.State == salewindow.StatePurchaseReady && prev != salewindow.StatePurchaseReady {
				readyTransitions++
			}
			prev = s.State
		}
		assert.Equal(t, 1, readyTransitions)
	})

	t.Run("Success - pushed updates apply while queued", func(t *testing.T) {
		m, clock, _, rec := newTestMachine(t, 500)
		start := baseTime
		require.NoError(t, m.Start(context.Background(), &start))
		clock.Advance(0)

		m.UpdatePosition(model.NewQueuePosition(11, 10, clock.Now()))

		assert.Equal(t, 11, rec.last().Position.Position)
		assert.Equal(t, 2, rec.last().Position.EstimatedWaitMinutes)
	})

	t.Run("Failed - transient poll error retries", func(t *testing.T) {
		m, clock, q, rec := newTestMachine(t, 8)
		q.errs = []error{errors.New("redis timeout")}
		start := baseTime
		require.NoError(t, m.Start(context.Background(), &start))

		clock.Advance(0)
		assert.NotEmpty(t, rec.last().Error)
		assert.Equal(t, salewindow.StateQueued, m.State())

		clock.Advance(5 * time.Second)
		joins, _, _ := q.counts()
		assert.Equal(t, 2, joins)
		assert.Empty(t, rec.last().Error)
		assert.Equal(t, 8, rec.last().Position.Position)
	})

	t.Run("Success - left queue returns to event without rejoining", func(t *testing.T) {
		m, clock, q, rec := newTestMachine(t, 20)
		start := baseTime
		require.NoError(t, m.Start(context.Background(), &start))
		clock.Advance(0)

		// 使用者在其他分頁離開隊列，或已完成購買
		q.mu.Lock()
		q.errs = []error{apperrors.ErrNotInQueue}
		q.mu.Unlock()

		// 執行
		clock.Advance(5 * time.Second)

		// 驗證結果
		assert.Equal(t, salewindow.StateExpired, m.State())
		last := rec.last()
		assert.Equal(t, salewindow.NavigateEventDetail, last.Navigate)
		assert.NotEmpty(t, last.Message)
		assert.Nil(t, last.Position)
		assert.Equal(t, 0, clock.Pending())

		clock.Advance(time.Minute)
		joins, polls, grants := q.counts()
		assert.Equal(t, 1, joins)
		assert.Equal(t, 1, polls)
		assert.Equal(t, 0, grants)
	})

	t.Run("Success - window granted outside the session is adopted", func(t *testing.T) {
		m, clock, q, rec := newTestMachine(t, 20)
		start := baseTime
		require.NoError(t, m.Start(context.Background(), &start))
		clock.Advance(0)

		granted := model.PurchaseWindow{GrantedAt: baseTime.Add(2 * time.Second), ExpiresAt: baseTime.Add(2*time.Second + 10*time.Minute)}
		q.mu.Lock()
		q.errs = []error{apperrors.ErrNotInQueue}
		q.existing = &granted
		q.mu.Unlock()

		// 執行
		clock.Advance(5 * time.Second)

		// 驗證結果：沿用伺服器的到期時間，不重新發放
		assert.Equal(t, salewindow.StatePurchaseReady, m.State())
		last := rec.last()
		require.NotNil(t, last.Window)
		assert.Equal(t, granted, *last.Window)
		assert.Equal(t, 597, last.SecondsLeft)
		joins, _, grants := q.counts()
		assert.Equal(t, 1, joins)
		assert.Equal(t, 0, grants)

		require.NoError(t, m.Complete())
		assert.Equal(t, salewindow.StateCompleted, m.State())
	})

	t.Run("Success - expired outside window ends session", func(t *testing.T) {
		m, clock, q, rec := newTestMachine(t, 20)
		start := baseTime
		require.NoError(t, m.Start(context.Background(), &start))
		clock.Advance(0)

		stale := model.PurchaseWindow{GrantedAt: baseTime.Add(-10 * time.Minute), ExpiresAt: baseTime}
		q.mu.Lock()
		q.errs = []error{apperrors.ErrNotInQueue}
		q.existing = &stale
		q.mu.Unlock()

		// 執行
		clock.Advance(5 * time.Second)
		clock.Advance(3 * time.Second)

		// 驗證結果
		assert.Equal(t, salewindow.StateExpired, m.State())
		assert.Equal(t, salewindow.NavigateEventDetail, rec.last().Navigate)
		joins, _, _ := q.counts()
		assert.Equal(t, 1, joins)
	})

	t.Run("Failed - window lookup error retries without rejoining", func(t *testing.T) {
		m, clock, q, rec := newTestMachine(t, 20)
		start := baseTime
		require.NoError(t, m.Start(context.Background(), &start))
		clock.Advance(0)

		q.mu.Lock()
		q.errs = []error{apperrors.ErrNotInQueue}
		q.lookupErr = errors.New("redis timeout")
		q.mu.Unlock()

		// 執行
		clock.Advance(5 * time.Second)

		// 驗證結果
		assert.Equal(t, salewindow.StateQueued, m.State())
		assert.NotEmpty(t, rec.last().Error)

		clock.Advance(5 * time.Second)
		joins, polls, _ := q.counts()
		assert.Equal(t, 1, joins)
		assert.Equal(t, 2, polls)
		assert.Equal(t, 20, rec.last().Position.Position)
	})
}

func TestMachine_PurchaseWindow(t *testing.T) {
	t.Run("Success - expires at window end then returns to event", func(t *testing.T) {
		m, clock, _, rec := reachPurchaseReady(t, 1)

		clock.Advance(599*time.Second + 999*time.Millisecond)
		assert.Equal(t, salewindow.StatePurchaseReady, m.State())
		assert.Equal(t, 1, rec.last().SecondsLeft)

		clock.Advance(time.Millisecond)
		assert.Equal(t, salewindow.StateExpired, m.State())
		assert.Equal(t, 1, rec.countState(salewindow.StateExpired))

		clock.Advance(3 * time.Second)
		last := rec.last()
		assert.Equal(t, salewindow.NavigateEventDetail, last.Navigate)
		assert.Nil(t, last.Position)
		assert.Nil(t, last.Window)
		assert.Equal(t, 0, clock.Pending())
	})

	t.Run("Success - complete inside window", func(t *testing.T) {
		m, clock, _, _ := reachPurchaseReady(t, 1)
		clock.Advance(2 * time.Minute)

		err := m.Complete()

		require.NoError(t, err)
		assert.Equal(t, salewindow.StateCompleted, m.State())
		assert.Equal(t, 0, clock.Pending())
	})

	t.Run("Failed - complete after expiry", func(t *testing.T) {
		m, clock, _, _ := reachPurchaseReady(t, 1)
		clock.Advance(10 * time.Minute)

		err := m.Complete()

		assert.ErrorIs(t, err, apperrors.ErrWindowExpired)
		assert.Equal(t, salewindow.StateExpired, m.State())
	})

	t.Run("Failed - complete while queued", func(t *testing.T) {
		m, clock, _, _ := newTestMachine(t, 9)
		start := baseTime
		require.NoError(t, m.Start(context.Background(), &start))
		clock.Advance(0)

		err := m.Complete()

		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
		assert.Equal(t, salewindow.StateQueued, m.State())
	})
}

func TestMachine_Close(t *testing.T) {
	t.Run("Success - in-flight result discarded", func(t *testing.T) {
		m, clock, q, rec := newTestMachine(t, 1)
		q.onCall = m.Close
		start := baseTime
		require.NoError(t, m.Start(context.Background(), &start))
		before := len(rec.all())

		clock.Advance(0)

		assert.Len(t, rec.all(), before)
		assert.Equal(t, salewindow.StateQueued, m.State())
		require.NotNil(t, q.lastCtx)
		assert.Error(t, q.lastCtx.Err())
		_, _, grants := q.counts()
		assert.Equal(t, 0, grants)
		select {
		case <-m.Done():
		default:
			t.Fatal("machine not closed")
		}
		assert.Equal(t, 0, clock.Pending())
	})

	t.Run("Success - parent context cancel tears down", func(t *testing.T) {
		m, _, _, _ := newTestMachine(t, 5)
		ctx, cancel := context.WithCancel(context.Background())
		start := baseTime.Add(time.Hour)
		require.NoError(t, m.Start(ctx, &start))

		cancel()

		select {
		case <-m.Done():
		case <-time.After(time.Second):
			t.Fatal("machine not closed after context cancel")
		}
	})

	t.Run("Success - close is idempotent", func(t *testing.T) {
		m, _, _, _ := newTestMachine(t)
		m.Close()
		m.Close()
		err := m.Start(context.Background(), &baseTime)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	})
}
