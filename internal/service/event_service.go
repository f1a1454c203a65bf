package service

import (
	"context"
	"errors"
	"strings"

	"go-gin-waiting-room/internal/cache"
	"go-gin-waiting-room/internal/model"
	"go-gin-waiting-room/internal/queue"
	"go-gin-waiting-room/internal/repository"
	"go-gin-waiting-room/internal/salewindow"
	apperrors "go-gin-waiting-room/pkg/app_errors"
	"go-gin-waiting-room/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventService interface {
	List(ctx context.Context) ([]*model.Event, error)
	GetByEventID(ctx context.Context, eventID uuid.UUID) (*model.Event, error)
	// GetDetail 活動詳情，含票種與販售狀態
	GetDetail(ctx context.Context, eventID uuid.UUID) (*model.EventDetail, error)
	Create(ctx context.Context, event *model.Event) (*model.Event, error)
	UpdateByEventID(ctx context.Context, eventID uuid.UUID, params model.UpdateEventParams) (*model.Event, error)
	AddTicketKind(ctx context.Context, eventID uuid.UUID, kind *model.TicketKind) (*model.TicketKind, error)
	// OpenForSale 預熱所有票種的 Redis 名額並讓排程器開始放行
	OpenForSale(ctx context.Context, eventID uuid.UUID) error
	Status(ctx context.Context, eventID uuid.UUID) (*model.EventStatus, error)
	WaitingRoom(ctx context.Context, eventID uuid.UUID) (*salewindow.WaitingRoomView, error)
}

type EventServiceImpl struct {
	repo      repository.EventRepository
	kindRepo  repository.TicketKindRepository
	inventory cache.SpotInventory
	queue     queue.VirtualQueue
	clock     salewindow.Clock
}

func NewEventService(
	repo repository.EventRepository,
	kindRepo repository.TicketKindRepository,
	inventory cache.SpotInventory,
	vq queue.VirtualQueue,
	clock salewindow.Clock,
) EventService {
	if clock == nil {
		clock = salewindow.RealClock()
	}
	return &EventServiceImpl{repo: repo, kindRepo: kindRepo, inventory: inventory, queue: vq, clock: clock}
}

func (s *EventServiceImpl) List(ctx context.Context) ([]*model.Event, error) {
	return s.repo.List(ctx)
}

func (s *EventServiceImpl) GetByEventID(ctx context.Context, eventID uuid.UUID) (*model.Event, error) {
	return s.repo.FindByEventID(ctx, eventID)
}

func (s *EventServiceImpl) GetDetail(ctx context.Context, eventID uuid.UUID) (*model.EventDetail, error) {
	event, err := s.repo.FindByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	kinds, err := s.kindRepo.ListByEvent(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	return &model.EventDetail{
		Event:        event,
		TicketKinds:  kinds,
		Availability: event.Availability(s.clock.Now(), s.remaining(ctx, kinds)),
	}, nil
}

// remaining 所有票種剩餘名額加總；尚未預熱時回傳 -1（未知）
func (s *EventServiceImpl) remaining(ctx context.Context, kinds []*model.TicketKind) int {
	if len(kinds) == 0 {
		return -1
	}
	total := 0
	for _, k := range kinds {
		stock, err := s.inventory.GetStock(ctx, k.ID)
		if err != nil {
			if !errors.Is(err, apperrors.ErrTicketKindNotFound) {
				logger.WithComponent("event-service").Warn("read spot stock failed", zap.Int("ticket_kind_id", k.ID), zap.Error(err))
			}
			return -1
		}
		total += stock
	}
	return total
}

func (s *EventServiceImpl) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	event.Slug = strings.TrimSpace(event.Slug)
	event.Name = strings.TrimSpace(event.Name)
	if event.Slug == "" || event.Name == "" {
		return nil, apperrors.ErrInvalidInput
	}
	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	return s.repo.Create(ctx, event)
}

func (s *EventServiceImpl) UpdateByEventID(ctx context.Context, eventID uuid.UUID, params model.UpdateEventParams) (*model.Event, error) {
	event, err := s.repo.FindByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, event.ID, params)
}

func (s *EventServiceImpl) AddTicketKind(ctx context.Context, eventID uuid.UUID, kind *model.TicketKind) (*model.TicketKind, error) {
	kind.Name = strings.TrimSpace(kind.Name)
	if kind.Name == "" || kind.Price < 0 || kind.TotalStock < 0 {
		return nil, apperrors.ErrInvalidInput
	}
	if kind.MaxPerUser <= 0 {
		kind.MaxPerUser = 1
	}

	event, err := s.repo.FindByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	kind.EventID = event.ID
	return s.kindRepo.Create(ctx, kind)
}

func (s *EventServiceImpl) OpenForSale(ctx context.Context, eventID uuid.UUID) error {
	event, err := s.repo.FindByEventID(ctx, eventID)
	if err != nil {
		return err
	}
	if event.SalesStartAt == nil || event.SalesStartAt.IsZero() {
		return apperrors.ErrSalesStartMissing
	}

	kinds, err := s.kindRepo.ListByEvent(ctx, event.ID)
	if err != nil {
		return err
	}
	for _, k := range kinds {
		if err := s.inventory.WarmUp(ctx, k.ID, k.TotalStock, k.Price, k.MaxPerUser); err != nil {
			return err
		}
	}

	if err := s.queue.Activate(ctx, event.EventID); err != nil {
		return err
	}

	logger.WithComponent("event-service").Info("event opened for sale",
		zap.String("event_id", event.EventID.String()),
		zap.Int("ticket_kinds", len(kinds)),
		zap.Time("sales_start_at", *event.SalesStartAt),
	)
	return nil
}

func (s *EventServiceImpl) Status(ctx context.Context, eventID uuid.UUID) (*model.EventStatus, error) {
	event, err := s.repo.FindByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	return &model.EventStatus{CurrentDate: now, IsOpen: event.IsOpen(now)}, nil
}

func (s *EventServiceImpl) WaitingRoom(ctx context.Context, eventID uuid.UUID) (*salewindow.WaitingRoomView, error) {
	event, err := s.repo.FindByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	view, err := salewindow.NewWaitingRoomView(event, s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	return &view, nil
}
