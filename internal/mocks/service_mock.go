package mocks

import (
	"context"

	"go-gin-waiting-room/internal/model"
	"go-gin-waiting-room/internal/salewindow"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockEventService struct {
	mock.Mock
}

func NewMockEventService() *MockEventService {
	return &MockEventService{}
}

func (m *MockEventService) List(ctx context.Context) ([]*model.Event, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Event), args.Error(1)
}

func (m *MockEventService) GetByEventID(ctx context.Context, eventID uuid.UUID) (*model.Event, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

func (m *MockEventService) GetDetail(ctx context.Context, eventID uuid.UUID) (*model.EventDetail, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.EventDetail), args.Error(1)
}

func (m *MockEventService) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

func (m *MockEventService) UpdateByEventID(ctx context.Context, eventID uuid.UUID, params model.UpdateEventParams) (*model.Event, error) {
	args := m.Called(ctx, eventID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

func (m *MockEventService) AddTicketKind(ctx context.Context, eventID uuid.UUID, kind *model.TicketKind) (*model.TicketKind, error) {
	args := m.Called(ctx, eventID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TicketKind), args.Error(1)
}

func (m *MockEventService) OpenForSale(ctx context.Context, eventID uuid.UUID) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

func (m *MockEventService) Status(ctx context.Context, eventID uuid.UUID) (*model.EventStatus, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.EventStatus), args.Error(1)
}

func (m *MockEventService) WaitingRoom(ctx context.Context, eventID uuid.UUID) (*salewindow.WaitingRoomView, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*salewindow.WaitingRoomView), args.Error(1)
}

type MockQueueService struct {
	mock.Mock
}

func NewMockQueueService() *MockQueueService {
	return &MockQueueService{}
}

func (m *MockQueueService) Join(ctx context.Context, eventID uuid.UUID, userID string) (model.QueuePosition, error) {
	args := m.Called(ctx, eventID, userID)
	return args.Get(0).(model.QueuePosition), args.Error(1)
}

func (m *MockQueueService) Position(ctx context.Context, eventID uuid.UUID, userID string) (model.QueuePosition, error) {
	args := m.Called(ctx, eventID, userID)
	return args.Get(0).(model.QueuePosition), args.Error(1)
}

func (m *MockQueueService) GrantWindow(ctx context.Context, eventID uuid.UUID, userID string) (model.PurchaseWindow, error) {
	args := m.Called(ctx, eventID, userID)
	return args.Get(0).(model.PurchaseWindow), args.Error(1)
}

func (m *MockQueueService) Window(ctx context.Context, eventID uuid.UUID, userID string) (model.PurchaseWindow, error) {
	args := m.Called(ctx, eventID, userID)
	return args.Get(0).(model.PurchaseWindow), args.Error(1)
}

func (m *MockQueueService) Status(ctx context.Context, eventID uuid.UUID, userID string) (*model.QueueStatus, error) {
	args := m.Called(ctx, eventID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QueueStatus), args.Error(1)
}

func (m *MockQueueService) Leave(ctx context.Context, eventID uuid.UUID, userID string) error {
	args := m.Called(ctx, eventID, userID)
	return args.Error(0)
}

func (m *MockQueueService) AdmitAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockReservationService struct {
	mock.Mock
}

func NewMockReservationService() *MockReservationService {
	return &MockReservationService{}
}

func (m *MockReservationService) CheckSpot(ctx context.Context, eventID uuid.UUID, kindName string) (*model.SpotAvailability, error) {
	args := m.Called(ctx, eventID, kindName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SpotAvailability), args.Error(1)
}

func (m *MockReservationService) Reserve(ctx context.Context, eventID uuid.UUID, userID string, req model.CreateReservationRequest) (*model.ReservationResult, error) {
	args := m.Called(ctx, eventID, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReservationResult), args.Error(1)
}

func (m *MockReservationService) Status(ctx context.Context, eventID uuid.UUID, userID string) (*model.ReservationStatusResponse, error) {
	args := m.Called(ctx, eventID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReservationStatusResponse), args.Error(1)
}

func (m *MockReservationService) Pay(ctx context.Context, eventID uuid.UUID, userID string) (*model.Reservation, error) {
	args := m.Called(ctx, eventID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reservation), args.Error(1)
}

func (m *MockReservationService) Cancel(ctx context.Context, eventID uuid.UUID, userID string) (*model.Reservation, error) {
	args := m.Called(ctx, eventID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reservation), args.Error(1)
}

func (m *MockReservationService) Expire(ctx context.Context, reservationID uuid.UUID) error {
	args := m.Called(ctx, reservationID)
	return args.Error(0)
}

func (m *MockReservationService) DispatchReservation(ctx context.Context, reservation *model.Reservation) error {
	args := m.Called(ctx, reservation)
	return args.Error(0)
}
