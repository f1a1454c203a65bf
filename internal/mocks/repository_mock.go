package mocks

import (
	"context"

	"go-gin-waiting-room/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockEventRepository struct {
	mock.Mock
}

func NewMockEventRepository() *MockEventRepository {
	return &MockEventRepository{}
}

func (m *MockEventRepository) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

func (m *MockEventRepository) List(ctx context.Context) ([]*model.Event, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Event), args.Error(1)
}

func (m *MockEventRepository) FindByID(ctx context.Context, id int) (*model.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

func (m *MockEventRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*model.Event, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

func (m *MockEventRepository) FindBySlug(ctx context.Context, slug string) (*model.Event, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

func (m *MockEventRepository) Update(ctx context.Context, id int, params model.UpdateEventParams) (*model.Event, error) {
	args := m.Called(ctx, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

type MockTicketKindRepository struct {
	mock.Mock
}

func NewMockTicketKindRepository() *MockTicketKindRepository {
	return &MockTicketKindRepository{}
}

func (m *MockTicketKindRepository) Create(ctx context.Context, kind *model.TicketKind) (*model.TicketKind, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TicketKind), args.Error(1)
}

func (m *MockTicketKindRepository) FindByID(ctx context.Context, id int) (*model.TicketKind, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TicketKind), args.Error(1)
}

func (m *MockTicketKindRepository) FindByEventAndName(ctx context.Context, eventID int, name string) (*model.TicketKind, error) {
	args := m.Called(ctx, eventID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TicketKind), args.Error(1)
}

func (m *MockTicketKindRepository) ListByEvent(ctx context.Context, eventID int) ([]*model.TicketKind, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.TicketKind), args.Error(1)
}

type MockReservationRepository struct {
	mock.Mock
}

func NewMockReservationRepository() *MockReservationRepository {
	return &MockReservationRepository{}
}

func (m *MockReservationRepository) Create(ctx context.Context, reservation *model.Reservation) (*model.Reservation, bool, error) {
	args := m.Called(ctx, reservation)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.Reservation), args.Bool(1), args.Error(2)
}

func (m *MockReservationRepository) FindByReservationID(ctx context.Context, reservationID uuid.UUID) (*model.Reservation, error) {
	args := m.Called(ctx, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reservation), args.Error(1)
}

func (m *MockReservationRepository) FindLatestByEventAndUser(ctx context.Context, eventID int, userID string) (*model.Reservation, error) {
	args := m.Called(ctx, eventID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reservation), args.Error(1)
}

func (m *MockReservationRepository) TransitionStatus(
	ctx context.Context,
	reservationID uuid.UUID,
	from, to model.ReservationStatus,
) (*model.Reservation, error) {
	args := m.Called(ctx, reservationID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reservation), args.Error(1)
}

type MockExpiryScheduler struct {
	mock.Mock
}

func NewMockExpiryScheduler() *MockExpiryScheduler {
	return &MockExpiryScheduler{}
}

func (m *MockExpiryScheduler) ScheduleExpiry(ctx context.Context, reservation *model.Reservation) error {
	args := m.Called(ctx, reservation)
	return args.Error(0)
}
