package service

import (
	"context"
	"errors"
	"time"

	"go-gin-waiting-room/config"
	"go-gin-waiting-room/internal/model"
	"go-gin-waiting-room/internal/notify"
	"go-gin-waiting-room/internal/queue"
	"go-gin-waiting-room/internal/repository"
	"go-gin-waiting-room/internal/salewindow"
	apperrors "go-gin-waiting-room/pkg/app_errors"
	"go-gin-waiting-room/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	QueueStateQueued = "queued"
	// QueueStateAdmitted 已輪到，但尚未領取購買時窗
	QueueStateAdmitted      = "admitted"
	QueueStatePurchaseReady = "purchase_ready"
)

// QueueService 伺服器端的排隊權威：位置、放行與購買時窗都以這裡為準
type QueueService interface {
	salewindow.Queue
	Status(ctx context.Context, eventID uuid.UUID, userID string) (*model.QueueStatus, error)
	Leave(ctx context.Context, eventID uuid.UUID, userID string) error
	// AdmitAll 排程器呼叫：依每分鐘放行人數推進所有進行中活動的隊列
	AdmitAll(ctx context.Context) error
}

type QueueServiceImpl struct {
	events    repository.EventRepository
	queue     queue.VirtualQueue
	publisher notify.Publisher
	sales     config.SalesConfig
	clock     salewindow.Clock
	log       *zap.Logger
}

func NewQueueService(
	events repository.EventRepository,
	vq queue.VirtualQueue,
	publisher notify.Publisher,
	sales config.SalesConfig,
	clock salewindow.Clock,
) QueueService {
	if clock == nil {
		clock = salewindow.RealClock()
	}
	return &QueueServiceImpl{
		events:    events,
		queue:     vq,
		publisher: publisher,
		sales:     sales,
		clock:     clock,
		log:       logger.WithComponent("queue-service"),
	}
}

func (s *QueueServiceImpl) Join(ctx context.Context, eventID uuid.UUID, userID string) (model.QueuePosition, error) {
	event, err := s.events.FindByEventID(ctx, eventID)
	if err != nil {
		return model.QueuePosition{}, err
	}
	if event.SalesStartAt == nil || event.SalesStartAt.IsZero() {
		return model.QueuePosition{}, apperrors.ErrSalesStartMissing
	}
	now := s.clock.Now()
	if !event.IsOpen(now) {
		return model.QueuePosition{}, apperrors.ErrSalesNotOpen
	}

	pos, err := s.queue.Join(ctx, eventID, userID)
	if err != nil {
		return model.QueuePosition{}, err
	}
	return model.NewQueuePosition(pos, s.sales.AdmissionsPerMinute, now), nil
}

func (s *QueueServiceImpl) Position(ctx context.Context, eventID uuid.UUID, userID string) (model.QueuePosition, error) {
	pos, err := s.queue.Position(ctx, eventID, userID)
	if err != nil {
		return model.QueuePosition{}, err
	}
	return model.NewQueuePosition(pos, s.sales.AdmissionsPerMinute, s.clock.Now()), nil
}

// GrantWindow 冪等；只有第一次發放會送出 window.granted
func (s *QueueServiceImpl) GrantWindow(ctx context.Context, eventID uuid.UUID, userID string) (model.PurchaseWindow, error) {
	w, err := s.queue.Window(ctx, eventID, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, apperrors.ErrNoPurchaseWindow) {
		return model.PurchaseWindow{}, err
	}

	w, err = s.queue.GrantWindow(ctx, eventID, userID, s.sales.PurchaseWindow)
	if err != nil {
		return model.PurchaseWindow{}, err
	}

	s.log.Info("purchase window granted",
		zap.String("event_id", eventID.String()),
		zap.String("user_id", userID),
		zap.Time("expires_at", w.ExpiresAt),
	)
	expires := w.ExpiresAt
	notify.Emit(ctx, s.publisher, model.LifecycleEvent{
		Type:       model.LifecycleWindowGranted,
		EventID:    eventID,
		UserID:     userID,
		ExpiresAt:  &expires,
		OccurredAt: w.GrantedAt,
	})
	return w, nil
}

func (s *QueueServiceImpl) Window(ctx context.Context, eventID uuid.UUID, userID string) (model.PurchaseWindow, error) {
	return s.queue.Window(ctx, eventID, userID)
}

// Status 唯讀查詢，不會發放時窗；時窗只由 GrantWindow 發放
func (s *QueueServiceImpl) Status(ctx context.Context, eventID uuid.UUID, userID string) (*model.QueueStatus, error) {
	pos, err := s.Position(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	status := &model.QueueStatus{EventID: eventID, State: QueueStateQueued, Position: pos}
	if pos.Position > 1 {
		return status, nil
	}

	w, err := s.queue.Window(ctx, eventID, userID)
	switch {
	case err == nil:
		status.State = QueueStatePurchaseReady
		status.Window = &w
	case errors.Is(err, apperrors.ErrNoPurchaseWindow):
		status.State = QueueStateAdmitted
	default:
		return nil, err
	}
	return status, nil
}

func (s *QueueServiceImpl) Leave(ctx context.Context, eventID uuid.UUID, userID string) error {
	return s.queue.Leave(ctx, eventID, userID)
}

// admitBatch 每次排程放行人數 = ceil(每分鐘人數 * 間隔 / 1 分鐘)
func (s *QueueServiceImpl) admitBatch() int {
	interval := s.sales.AdmissionInterval
	if interval <= 0 {
		interval = time.Minute
	}
	n := (int64(s.sales.AdmissionsPerMinute)*int64(interval) + int64(time.Minute) - 1) / int64(time.Minute)
	if n < 1 {
		n = 1
	}
	return int(n)
}

func (s *QueueServiceImpl) AdmitAll(ctx context.Context) error {
	ids, err := s.queue.ActiveEvents(ctx)
	if err != nil {
		return err
	}

	n := s.admitBatch()
	var errs []error
	for _, id := range ids {
		serving, err := s.queue.Advance(ctx, id, n)
		if err != nil {
			s.log.Error("advance queue failed", zap.String("event_id", id.String()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		s.log.Debug("queue advanced", zap.String("event_id", id.String()), zap.Int64("serving", serving), zap.Int("admitted", n))
	}
	return errors.Join(errs...)
}
