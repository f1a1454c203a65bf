package salewindow

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"go-gin-waiting-room/internal/model"
	apperrors "go-gin-waiting-room/pkg/app_errors"
	"go-gin-waiting-room/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type State string

const (
	StateClosed        State = "closed"
	StateQueued        State = "queued"
	StatePurchaseReady State = "purchase_ready"
	StateExpired       State = "expired"
	StateCompleted     State = "completed"
)

func (s State) IsTerminal() bool {
	return s == StateExpired || s == StateCompleted
}

type Navigation string

const (
	NavigateNone        Navigation = ""
	NavigateQueue       Navigation = "queue"
	NavigateEventDetail Navigation = "event_detail"
)

const (
	transientErrorMessage = "Could not refresh your status, retrying..."
	leftQueueMessage      = "You are no longer in the queue."
)

// Queue 伺服器端權威的排隊來源
type Queue interface {
	Join(ctx context.Context, eventID uuid.UUID, userID string) (model.QueuePosition, error)
	Position(ctx context.Context, eventID uuid.UUID, userID string) (model.QueuePosition, error)
	GrantWindow(ctx context.Context, eventID uuid.UUID, userID string) (model.PurchaseWindow, error)
	// Window 只查詢既有時窗，不存在時回傳 ErrNoPurchaseWindow
	Window(ctx context.Context, eventID uuid.UUID, userID string) (model.PurchaseWindow, error)
}

type Config struct {
	AdmissionsPerMinute int
	PurchaseWindow      time.Duration
	GraceDelay          time.Duration
	TickInterval        time.Duration
	PollMin             time.Duration
	PollMax             time.Duration
	// Jitter 回傳 [0,1) 的亂數，決定輪詢間隔落在 PollMin~PollMax 的位置
	Jitter func() float64
}

func DefaultConfig() Config {
	return Config{
		AdmissionsPerMinute: 10,
		PurchaseWindow:      10 * time.Minute,
		GraceDelay:          3 * time.Second,
		TickInterval:        time.Second,
		PollMin:             5 * time.Second,
		PollMax:             10 * time.Second,
		Jitter:              rand.Float64,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.AdmissionsPerMinute <= 0 {
		c.AdmissionsPerMinute = def.AdmissionsPerMinute
	}
	if c.PurchaseWindow <= 0 {
		c.PurchaseWindow = def.PurchaseWindow
	}
	if c.GraceDelay < 0 {
		c.GraceDelay = def.GraceDelay
	}
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.PollMin <= 0 {
		c.PollMin = def.PollMin
	}
	if c.PollMax < c.PollMin {
		c.PollMax = c.PollMin
	}
	if c.Jitter == nil {
		c.Jitter = def.Jitter
	}
	return c
}

// Snapshot 每次狀態變化送給 client 的完整畫面
type Snapshot struct {
	Seq         uint64                `json:"seq"`
	EventID     uuid.UUID             `json:"eventId"`
	State       State                 `json:"state"`
	Countdown   *Countdown            `json:"countdown,omitempty"`
	Display     string                `json:"display,omitempty"`
	Notice      Notice                `json:"notice,omitempty"`
	Message     string                `json:"message,omitempty"`
	Pulse       bool                  `json:"pulse"`
	Position    *model.QueuePosition  `json:"position,omitempty"`
	Window      *model.PurchaseWindow `json:"window,omitempty"`
	SecondsLeft int                   `json:"secondsLeft,omitempty"`
	Navigate    Navigation            `json:"navigate,omitempty"`
	Error       string                `json:"error,omitempty"`
	At          time.Time             `json:"at"`
}

// Machine 單一 (user, event) 的開賣狀態機。
// 任何時間只持有一個計時器，每次轉換都會停止舊計時器並以新世代取代；
// 舊世代的 callback 與逾時的查詢結果一律丟棄。
type Machine struct {
	mu sync.Mutex

	eventID uuid.UUID
	userID  string
	queue   Queue
	clock   Clock
	cfg     Config
	emit    func(Snapshot)
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	started      bool
	closed       bool
	state        State
	salesStartAt time.Time
	joined       bool
	purchaseSeen bool
	confirmed    bool
	position     *model.QueuePosition
	window       *model.PurchaseWindow

	timer Timer
	gen   uint64
	seq   uint64
}

func NewMachine(eventID uuid.UUID, userID string, queue Queue, clock Clock, cfg Config, emit func(Snapshot)) *Machine {
	if clock == nil {
		clock = RealClock()
	}
	return &Machine{
		eventID: eventID,
		userID:  userID,
		queue:   queue,
		clock:   clock,
		cfg:     cfg.withDefaults(),
		emit:    emit,
		log: logger.WithComponent("salewindow").With(
			zap.String("event_id", eventID.String()),
			zap.String("user_id", userID),
		),
		done:  make(chan struct{}),
		state: StateClosed,
	}
}

func (m *Machine) EventID() uuid.UUID { return m.eventID }
func (m *Machine) UserID() string     { return m.userID }

// Done 在 Close 後關閉
func (m *Machine) Done() <-chan struct{} { return m.done }

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current 目前畫面，不遞增序號
func (m *Machine) Current() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewLocked(m.clock.Now())
}

// Start 進入等候室。未設定開賣時間視為設定錯誤，直接回傳錯誤而不是無限等待。
func (m *Machine) Start(ctx context.Context, salesStartAt *time.Time) error {
	if salesStartAt == nil || salesStartAt.IsZero() {
		return apperrors.ErrSalesStartMissing
	}

	m.mu.Lock()
	if m.started || m.closed {
		m.mu.Unlock()
		return apperrors.ErrInvalidTransition
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	context.AfterFunc(m.ctx, m.Close)
	m.salesStartAt = *salesStartAt

	now := m.clock.Now()
	var out []Snapshot
	cd := NewCountdown(m.salesStartAt, now)
	if cd.Total <= 0 {
		out = m.enterQueuedLocked(now)
	} else {
		out = append(out, m.nextSnapshotLocked(now, NavigateNone, ""))
		m.schedule(m.closedTickDelay(cd), m.tickClosed)
	}
	m.mu.Unlock()

	m.publish(out)
	return nil
}

// UpdatePosition 推播通道收到的位置更新，規則與輪詢相同
func (m *Machine) UpdatePosition(pos model.QueuePosition) {
	m.mu.Lock()
	if m.closed || m.state != StateQueued {
		m.mu.Unlock()
		return
	}
	m.joined = true
	out := m.applyPositionLocked(pos, m.clock.Now())
	m.mu.Unlock()

	m.publish(out)
}

// Complete 時窗內完成購買
func (m *Machine) Complete() error {
	m.mu.Lock()
	switch m.state {
	case StatePurchaseReady:
	case StateExpired:
		m.mu.Unlock()
		return apperrors.ErrWindowExpired
	default:
		m.mu.Unlock()
		return apperrors.ErrInvalidTransition
	}

	now := m.clock.Now()
	if !m.window.IsActive(now) {
		out := m.expireLocked(now)
		m.mu.Unlock()
		m.publish(out)
		return apperrors.ErrWindowExpired
	}

	m.state = StateCompleted
	m.stopTimerLocked()
	out := []Snapshot{m.nextSnapshotLocked(now, NavigateNone, "")}
	m.mu.Unlock()

	m.publish(out)
	return nil
}

// Close 拆除狀態機：停止計時器並取消進行中的查詢
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.stopTimerLocked()
	if m.cancel != nil {
		m.cancel()
	}
	close(m.done)
}

func (m *Machine) tickClosed(gen uint64) {
	m.mu.Lock()
	if !m.currentLocked(gen) || m.state != StateClosed {
		m.mu.Unlock()
		return
	}

	now := m.clock.Now()
	var out []Snapshot
	cd := NewCountdown(m.salesStartAt, now)
	if cd.Total <= 0 {
		out = m.enterQueuedLocked(now)
	} else {
		out = append(out, m.nextSnapshotLocked(now, NavigateNone, ""))
		m.schedule(m.closedTickDelay(cd), m.tickClosed)
	}
	m.mu.Unlock()

	m.publish(out)
}

func (m *Machine) enterQueuedLocked(now time.Time) []Snapshot {
	m.state = StateQueued
	m.log.Info("sales opened, entering queue")
	m.schedule(0, m.pollQueue)
	return []Snapshot{m.nextSnapshotLocked(now, NavigateQueue, "")}
}

func (m *Machine) pollQueue(gen uint64) {
	m.mu.Lock()
	if !m.currentLocked(gen) || m.state != StateQueued {
		m.mu.Unlock()
		return
	}
	ctx, joined := m.ctx, m.joined
	m.mu.Unlock()

	var pos model.QueuePosition
	var err error
	if joined {
		pos, err = m.queue.Position(ctx, m.eventID, m.userID)
	} else {
		pos, err = m.queue.Join(ctx, m.eventID, m.userID)
	}

	// 不在隊列中：時窗可能已在別處領取，或使用者已離開
	left := errors.Is(err, apperrors.ErrNotInQueue)
	var window model.PurchaseWindow
	var windowErr error
	if left {
		window, windowErr = m.queue.Window(ctx, m.eventID, m.userID)
	}

	m.mu.Lock()
	// 查詢期間已轉換或拆除，結果作廢
	if !m.currentLocked(gen) || m.state != StateQueued {
		m.mu.Unlock()
		return
	}
	now := m.clock.Now()
	var out []Snapshot
	switch {
	case left && windowErr == nil:
		m.log.Info("purchase window found outside queue, adopting it")
		out = m.enterPurchaseLocked(model.NewQueuePosition(1, m.cfg.AdmissionsPerMinute, now), window, true, now)
	case left && errors.Is(windowErr, apperrors.ErrNoPurchaseWindow):
		out = m.leaveQueueLocked(now)
	case err != nil:
		if left {
			err = windowErr
		}
		m.log.Warn("queue poll failed", zap.Bool("joined", joined), zap.Error(err))
		out = append(out, m.nextSnapshotLocked(now, NavigateNone, transientErrorMessage))
	default:
		m.joined = true
		out = m.applyPositionLocked(pos, now)
	}
	if m.state == StateQueued {
		m.schedule(m.pollDelay(), m.pollQueue)
	}
	m.mu.Unlock()

	m.publish(out)
}

func (m *Machine) applyPositionLocked(pos model.QueuePosition, now time.Time) []Snapshot {
	prev := 0
	if m.position != nil {
		prev = m.position.Position
	}
	at := pos.UpdatedAt
	if at.IsZero() {
		at = now
	}

	if pos.Position > 1 {
		p := model.NewQueuePosition(pos.Position, m.cfg.AdmissionsPerMinute, at)
		m.position = &p
		return []Snapshot{m.nextSnapshotLocked(now, NavigateNone, "")}
	}

	// 位置 1：每個排隊流程只會進入一次購買時窗
	if prev == 1 || m.purchaseSeen {
		return nil
	}
	m.log.Info("front of queue reached, purchase window starting")
	// 伺服器確認前先以本地時間作為暫定時窗
	provisional := model.PurchaseWindow{GrantedAt: now, ExpiresAt: now.Add(m.cfg.PurchaseWindow)}
	return m.enterPurchaseLocked(model.NewQueuePosition(1, m.cfg.AdmissionsPerMinute, at), provisional, false, now)
}

// enterPurchaseLocked confirmed 表示時窗已由伺服器發放，不需再呼叫 GrantWindow
func (m *Machine) enterPurchaseLocked(pos model.QueuePosition, window model.PurchaseWindow, confirmed bool, now time.Time) []Snapshot {
	m.position = &pos
	m.purchaseSeen = true
	m.state = StatePurchaseReady
	m.window = &window
	m.confirmed = confirmed
	if !window.IsActive(now) {
		return m.expireLocked(now)
	}
	m.schedule(0, m.tickPurchase)
	return []Snapshot{m.nextSnapshotLocked(now, NavigateNone, "")}
}

// leaveQueueLocked 已不在隊列也沒有時窗（離開、已購買或時窗已過），結束流程並導回活動頁，不重新排隊
func (m *Machine) leaveQueueLocked(now time.Time) []Snapshot {
	m.state = StateExpired
	m.stopTimerLocked()
	m.position = nil
	m.window = nil
	m.log.Info("no longer in queue, returning to event")
	s := m.nextSnapshotLocked(now, NavigateEventDetail, "")
	s.Message = leftQueueMessage
	return []Snapshot{s}
}

// completeQueued 付款已由伺服器確認，但時窗是在狀態機之外領取的，狀態機仍停在排隊
func (m *Machine) completeQueued() error {
	m.mu.Lock()
	if m.closed || m.state != StateQueued {
		m.mu.Unlock()
		return apperrors.ErrInvalidTransition
	}
	m.state = StateCompleted
	m.stopTimerLocked()
	out := []Snapshot{m.nextSnapshotLocked(m.clock.Now(), NavigateNone, "")}
	m.mu.Unlock()

	m.publish(out)
	return nil
}

func (m *Machine) tickPurchase(gen uint64) {
	m.mu.Lock()
	if !m.currentLocked(gen) || m.state != StatePurchaseReady {
		m.mu.Unlock()
		return
	}
	ctx, needGrant := m.ctx, !m.confirmed
	m.mu.Unlock()

	var granted model.PurchaseWindow
	var err error
	if needGrant {
		granted, err = m.queue.GrantWindow(ctx, m.eventID, m.userID)
	}

	m.mu.Lock()
	if !m.currentLocked(gen) || m.state != StatePurchaseReady {
		m.mu.Unlock()
		return
	}
	now := m.clock.Now()
	errMsg := ""
	if needGrant {
		if err != nil {
			m.log.Warn("grant purchase window failed", zap.Error(err))
			errMsg = transientErrorMessage
		} else {
			m.window = &granted
			m.confirmed = true
		}
	}

	var out []Snapshot
	if !m.window.IsActive(now) {
		out = m.expireLocked(now)
	} else {
		out = append(out, m.nextSnapshotLocked(now, NavigateNone, errMsg))
		remaining := m.window.Remaining(now)
		m.schedule(min(m.cfg.TickInterval, remaining), m.tickPurchase)
	}
	m.mu.Unlock()

	m.publish(out)
}

func (m *Machine) expireLocked(now time.Time) []Snapshot {
	m.state = StateExpired
	m.log.Info("purchase window expired")
	m.schedule(m.cfg.GraceDelay, m.afterGrace)
	return []Snapshot{m.nextSnapshotLocked(now, NavigateNone, "")}
}

// afterGrace 過期後的緩衝時間結束，導回活動頁並丟棄排隊資料，不自動重新排隊
func (m *Machine) afterGrace(gen uint64) {
	m.mu.Lock()
	if !m.currentLocked(gen) || m.state != StateExpired {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.position = nil
	m.window = nil
	out := []Snapshot{m.nextSnapshotLocked(m.clock.Now(), NavigateEventDetail, "")}
	m.mu.Unlock()

	m.publish(out)
}

// schedule 以新世代取代目前唯一的計時器
func (m *Machine) schedule(d time.Duration, fn func(gen uint64)) {
	m.stopTimerLocked()
	gen := m.gen
	m.timer = m.clock.AfterFunc(d, func() { fn(gen) })
}

func (m *Machine) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.gen++
}

func (m *Machine) currentLocked(gen uint64) bool {
	return !m.closed && gen == m.gen
}

func (m *Machine) closedTickDelay(cd Countdown) time.Duration {
	return min(m.cfg.TickInterval, time.Duration(cd.Total)*time.Millisecond)
}

func (m *Machine) pollDelay() time.Duration {
	spread := m.cfg.PollMax - m.cfg.PollMin
	return m.cfg.PollMin + time.Duration(m.cfg.Jitter()*float64(spread))
}

func (m *Machine) nextSnapshotLocked(now time.Time, nav Navigation, errMsg string) Snapshot {
	m.seq++
	s := m.viewLocked(now)
	s.Navigate = nav
	s.Error = errMsg
	return s
}

func (m *Machine) viewLocked(now time.Time) Snapshot {
	s := Snapshot{
		Seq:     m.seq,
		EventID: m.eventID,
		State:   m.state,
		At:      now,
	}
	switch m.state {
	case StateClosed:
		if !m.salesStartAt.IsZero() {
			cd := NewCountdown(m.salesStartAt, now)
			s.Countdown = &cd
			s.Display = cd.String()
			s.Notice, s.Pulse = cd.Notice()
			s.Message = s.Notice.Message()
		}
	case StateQueued:
		if m.position == nil {
			s.Notice = NoticeSalesStarted
			s.Message = NoticeSalesStarted.Message()
		}
	}
	if m.position != nil {
		p := *m.position
		s.Position = &p
	}
	if m.window != nil {
		w := *m.window
		s.Window = &w
		if m.state == StatePurchaseReady {
			s.SecondsLeft = secondsCeil(w.Remaining(now))
		}
	}
	return s
}

func (m *Machine) publish(out []Snapshot) {
	if m.emit == nil {
		return
	}
	for _, s := range out {
		m.emit(s)
	}
}

func secondsCeil(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
