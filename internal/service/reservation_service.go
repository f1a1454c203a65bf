package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go-gin-waiting-room/internal/cache"
	"go-gin-waiting-room/internal/model"
	"go-gin-waiting-room/internal/notify"
	"go-gin-waiting-room/internal/queue"
	"go-gin-waiting-room/internal/repository"
	"go-gin-waiting-room/internal/salewindow"
	"go-gin-waiting-room/internal/tasks"
	apperrors "go-gin-waiting-room/pkg/app_errors"
	"go-gin-waiting-room/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReservationService interface {
	CheckSpot(ctx context.Context, eventID uuid.UUID, kindName string) (*model.SpotAvailability, error)
	// Reserve 需持有有效的購買時窗；已有預約時直接回傳既有預約
	Reserve(ctx context.Context, eventID uuid.UUID, userID string, req model.CreateReservationRequest) (*model.ReservationResult, error)
	Status(ctx context.Context, eventID uuid.UUID, userID string) (*model.ReservationStatusResponse, error)
	Pay(ctx context.Context, eventID uuid.UUID, userID string) (*model.Reservation, error)
	Cancel(ctx context.Context, eventID uuid.UUID, userID string) (*model.Reservation, error)
	// Expire 到期排程呼叫
	Expire(ctx context.Context, reservationID uuid.UUID) error
	// DispatchReservation worker 呼叫：把 stream 中的預約寫入 DB
	DispatchReservation(ctx context.Context, reservation *model.Reservation) error
}

// SessionCompleter 付款後通知該使用者存活中的開賣狀態機
type SessionCompleter interface {
	Complete(eventID uuid.UUID, userID string) error
}

type ReservationDeps struct {
	Events       repository.EventRepository
	Kinds        repository.TicketKindRepository
	Reservations repository.ReservationRepository
	Inventory    cache.SpotInventory
	Cache        cache.ReservationCache
	Stream       queue.ReservationQueue
	Queue        queue.VirtualQueue
	Expiry       tasks.ExpiryScheduler
	Publisher    notify.Publisher
	Sessions     SessionCompleter
	Clock        salewindow.Clock
}

type ReservationServiceImpl struct {
	ReservationDeps
	log *zap.Logger
}

func NewReservationService(deps ReservationDeps) ReservationService {
	if deps.Clock == nil {
		deps.Clock = salewindow.RealClock()
	}
	if deps.Publisher == nil {
		deps.Publisher = notify.NopPublisher{}
	}
	return &ReservationServiceImpl{
		ReservationDeps: deps,
		log:             logger.WithComponent("reservation-service"),
	}
}

func (s *ReservationServiceImpl) CheckSpot(ctx context.Context, eventID uuid.UUID, kindName string) (*model.SpotAvailability, error) {
	event, err := s.Events.FindByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	kind, err := s.Kinds.FindByEventAndName(ctx, event.ID, strings.TrimSpace(kindName))
	if err != nil {
		return nil, err
	}

	remaining, err := s.Inventory.GetStock(ctx, kind.ID)
	if errors.Is(err, apperrors.ErrTicketKindNotFound) {
		// 尚未開賣預熱，以總量回報
		remaining = kind.TotalStock
	} else if err != nil {
		return nil, err
	}

	return &model.SpotAvailability{
		IsAvailable: remaining > 0,
		WaitingList: remaining <= 0,
		Remaining:   max(remaining, 0),
	}, nil
}

func (s *ReservationServiceImpl) Reserve(ctx context.Context, eventID uuid.UUID, userID string, req model.CreateReservationRequest) (*model.ReservationResult, error) {
	event, err := s.Events.FindByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	// 重複預約：回傳既有的那筆；已付款的時窗已被刪除，也直接回傳
	if existing, err := s.current(ctx, event, userID); err != nil {
		return nil, err
	} else if holdsSpot(existing, s.Clock.Now()) || (existing != nil && existing.Status == model.ReservationStatusPaid) {
		return &model.ReservationResult{Reservation: existing, Existing: true}, nil
	}

	window, err := s.Queue.Window(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	now := s.Clock.Now()
	if !window.IsActive(now) {
		return nil, apperrors.ErrWindowExpired
	}

	kind, err := s.Kinds.FindByEventAndName(ctx, event.ID, strings.TrimSpace(req.TicketKind))
	if err != nil {
		return nil, err
	}

	const quantity = 1
	price, err := s.Inventory.Reserve(ctx, kind.ID, quantity, userID)
	if err != nil {
		return nil, err
	}

	reservation := &model.Reservation{
		ReservationID: uuid.New(),
		EventID:       event.ID,
		EventUUID:     event.EventID,
		UserID:        userID,
		TicketKindID:  kind.ID,
		Quantity:      quantity,
		TotalPrice:    price * float64(quantity),
		Status:        model.ReservationStatusReserved,
		ReservedAt:    now.UTC(),
		ExpiresAt:     window.ExpiresAt.UTC(),
	}

	if err := s.Expiry.ScheduleExpiry(ctx, reservation); err != nil {
		s.log.Error("schedule expiry failed", zap.String("reservation_id", reservation.ReservationID.String()), zap.Error(err))
		s.rollback(kind.ID, quantity, userID)
		return nil, apperrors.ErrInternalServerError
	}

	// 寫入 stream 失敗必須回補名額，不能讓使用者拿到沒有紀錄的名額
	if err := s.Stream.PublishReservation(ctx, reservation); err != nil {
		s.log.Error("publish reservation failed", zap.String("reservation_id", reservation.ReservationID.String()), zap.Error(err))
		s.rollback(kind.ID, quantity, userID)
		return nil, apperrors.ErrInternalServerError
	}

	if err := s.Cache.Save(ctx, reservation); err != nil {
		s.log.Warn("cache reservation failed", zap.String("reservation_id", reservation.ReservationID.String()), zap.Error(err))
	}

	rid := reservation.ReservationID
	notify.Emit(ctx, s.Publisher, model.LifecycleEvent{
		Type:          model.LifecycleReservationCreated,
		EventID:       event.EventID,
		UserID:        userID,
		ReservationID: &rid,
		ExpiresAt:     &reservation.ExpiresAt,
		OccurredAt:    now.UTC(),
	})

	return &model.ReservationResult{Reservation: reservation}, nil
}

func (s *ReservationServiceImpl) Status(ctx context.Context, eventID uuid.UUID, userID string) (*model.ReservationStatusResponse, error) {
	event, err := s.Events.FindByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	now := s.Clock.Now()

	current, err := s.current(ctx, event, userID)
	if err != nil {
		return nil, err
	}
	resp := &model.ReservationStatusResponse{}
	if current != nil {
		switch {
		case current.Status == model.ReservationStatusPaid:
			resp.Status = model.ReservationStatusPaid
			resp.Reservation = current
			return resp, nil
		case holdsSpot(current, now):
			minutes := current.RemainingMinutes(now)
			resp.Status = model.ReservationStatusReserved
			resp.RemainingMinutes = &minutes
			resp.Reservation = current
			return resp, nil
		case current.Status == model.ReservationStatusReserved:
			// 到期排程尚未執行
			resp.Message = "Your reservation has expired."
		case current.Status.IsTerminal():
			resp.Message = "Your previous reservation was " + string(current.Status) + "."
		}
	}

	// 沒有進行中的預約：依排隊與名額狀態回報
	if pos, err := s.Queue.Position(ctx, eventID, userID); err == nil && pos > 1 {
		resp.Status = model.ReservationStatusWaiting
		return resp, nil
	} else if err != nil && !errors.Is(err, apperrors.ErrNotInQueue) {
		return nil, err
	}

	soldOut, err := s.soldOut(ctx, event)
	if err != nil {
		return nil, err
	}
	if soldOut {
		resp.Status = model.ReservationStatusWaitingList
		return resp, nil
	}
	resp.Status = model.ReservationStatusAvailable
	return resp, nil
}

func (s *ReservationServiceImpl) Pay(ctx context.Context, eventID uuid.UUID, userID string) (*model.Reservation, error) {
	event, res, err := s.activeReservation(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	if !now.Before(res.ExpiresAt) {
		if err := s.Expire(ctx, res.ReservationID); err != nil {
			s.log.Warn("expire on late payment failed", zap.String("reservation_id", res.ReservationID.String()), zap.Error(err))
		}
		return nil, apperrors.ErrWindowExpired
	}

	paid, err := s.Reservations.TransitionStatus(ctx, res.ReservationID, model.ReservationStatusReserved, model.ReservationStatusPaid)
	if err != nil {
		return nil, err
	}
	paid.EventUUID = event.EventID

	if err := s.Queue.CompleteWindow(ctx, eventID, userID); err != nil {
		s.log.Warn("complete purchase window failed", zap.String("user_id", userID), zap.Error(err))
	}
	if err := s.Cache.Delete(ctx, eventID, userID); err != nil {
		s.log.Warn("drop cached reservation failed", zap.String("user_id", userID), zap.Error(err))
	}
	if s.Sessions != nil {
		if err := s.Sessions.Complete(eventID, userID); err != nil {
			s.log.Warn("complete sales window session failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	s.emit(ctx, model.LifecycleReservationPaid, paid)
	return paid, nil
}

func (s *ReservationServiceImpl) Cancel(ctx context.Context, eventID uuid.UUID, userID string) (*model.Reservation, error) {
	event, res, err := s.activeReservation(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	cancelled, err := s.Reservations.TransitionStatus(ctx, res.ReservationID, model.ReservationStatusReserved, model.ReservationStatusCancelled)
	if err != nil {
		return nil, err
	}
	cancelled.EventUUID = event.EventID

	s.rollback(cancelled.TicketKindID, cancelled.Quantity, userID)
	if err := s.Cache.Delete(ctx, eventID, userID); err != nil {
		s.log.Warn("drop cached reservation failed", zap.String("user_id", userID), zap.Error(err))
	}

	s.emit(ctx, model.LifecycleReservationCancelled, cancelled)
	return cancelled, nil
}

func (s *ReservationServiceImpl) Expire(ctx context.Context, reservationID uuid.UUID) error {
	res, err := s.Reservations.FindByReservationID(ctx, reservationID)
	if err != nil {
		return err
	}
	if res.Status != model.ReservationStatusReserved {
		return nil
	}

	expired, err := s.Reservations.TransitionStatus(ctx, reservationID, model.ReservationStatusReserved, model.ReservationStatusExpired)
	if errors.Is(err, apperrors.ErrInvalidReservationStatus) {
		// 同時間已付款或取消
		return nil
	}
	if err != nil {
		return err
	}

	s.rollback(expired.TicketKindID, expired.Quantity, expired.UserID)
	if err := s.Cache.Delete(ctx, expired.EventUUID, expired.UserID); err != nil {
		s.log.Warn("drop cached reservation failed", zap.String("user_id", expired.UserID), zap.Error(err))
	}

	s.log.Info("reservation expired",
		zap.String("reservation_id", reservationID.String()),
		zap.String("user_id", expired.UserID),
	)
	s.emit(ctx, model.LifecycleReservationExpired, expired)
	return nil
}

func (s *ReservationServiceImpl) DispatchReservation(ctx context.Context, reservation *model.Reservation) error {
	_, created, err := s.Reservations.Create(ctx, reservation)
	if errors.Is(err, apperrors.ErrReservationExists) {
		// 使用者已有另一筆進行中的預約，這筆名額退回
		s.log.Warn("drop conflicting reservation",
			zap.String("reservation_id", reservation.ReservationID.String()),
			zap.String("user_id", reservation.UserID),
		)
		s.rollback(reservation.TicketKindID, reservation.Quantity, reservation.UserID)
		return nil
	}
	if err != nil {
		return err
	}
	if created {
		s.log.Debug("reservation persisted", zap.String("reservation_id", reservation.ReservationID.String()))
	}
	return nil
}

// current 以 DB 為準並與快取比對，回傳使用者最新的預約（可能為 nil）
func (s *ReservationServiceImpl) current(ctx context.Context, event *model.Event, userID string) (*model.Reservation, error) {
	persisted, err := s.Reservations.FindLatestByEventAndUser(ctx, event.ID, userID)
	if err != nil && !errors.Is(err, apperrors.ErrReservationNotFound) {
		return nil, err
	}
	cached, err := s.Cache.Load(ctx, event.EventID, userID)
	if err != nil && !errors.Is(err, apperrors.ErrReservationNotFound) {
		s.log.Warn("load cached reservation failed", zap.String("user_id", userID), zap.Error(err))
	}

	res := cache.Reconcile(persisted, cached, s.Clock.Now())
	if res != nil {
		res.EventUUID = event.EventID
	}
	return res, nil
}

// activeReservation 取得尚在 reserved 的預約；只存在快取時先補寫入 DB
func (s *ReservationServiceImpl) activeReservation(ctx context.Context, eventID uuid.UUID, userID string) (*model.Event, *model.Reservation, error) {
	event, err := s.Events.FindByEventID(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.current(ctx, event, userID)
	if err != nil {
		return nil, nil, err
	}
	if res == nil {
		return nil, nil, apperrors.ErrReservationNotFound
	}
	if res.Status != model.ReservationStatusReserved {
		return nil, nil, apperrors.ErrInvalidReservationStatus
	}
	if res.ID == 0 {
		if _, _, err := s.Reservations.Create(ctx, res); err != nil {
			return nil, nil, err
		}
	}
	return event, res, nil
}

func (s *ReservationServiceImpl) soldOut(ctx context.Context, event *model.Event) (bool, error) {
	kinds, err := s.Kinds.ListByEvent(ctx, event.ID)
	if err != nil {
		return false, err
	}
	if len(kinds) == 0 {
		return false, nil
	}
	for _, k := range kinds {
		stock, err := s.Inventory.GetStock(ctx, k.ID)
		if errors.Is(err, apperrors.ErrTicketKindNotFound) {
			stock = k.TotalStock
		} else if err != nil {
			return false, err
		}
		if stock > 0 {
			return false, nil
		}
	}
	return true, nil
}

// rollback 使用獨立 context，請求取消時也要回補名額
func (s *ReservationServiceImpl) rollback(kindID, quantity int, userID string) {
	if err := s.Inventory.Release(context.Background(), kindID, quantity, userID); err != nil {
		s.log.Error("release spot failed",
			zap.Int("ticket_kind_id", kindID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func (s *ReservationServiceImpl) emit(ctx context.Context, typ model.LifecycleEventType, res *model.Reservation) {
	rid := res.ReservationID
	notify.Emit(ctx, s.Publisher, model.LifecycleEvent{
		Type:          typ,
		EventID:       res.EventUUID,
		UserID:        res.UserID,
		ReservationID: &rid,
		OccurredAt:    s.Clock.Now().UTC(),
	})
}

// holdsSpot 預約仍為 reserved 且尚未到期
func holdsSpot(res *model.Reservation, now time.Time) bool {
	return res != nil && res.Status == model.ReservationStatusReserved && now.Before(res.ExpiresAt)
}
