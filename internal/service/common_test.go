package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"go-gin-waiting-room/config"
	"go-gin-waiting-room/internal/cache"
	"go-gin-waiting-room/internal/mocks"
	"go-gin-waiting-room/internal/model"
	"go-gin-waiting-room/internal/queue"
	"go-gin-waiting-room/internal/salewindow"
	"go-gin-waiting-room/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	baseTime  = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	salesOpen = baseTime.Add(-time.Minute)
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.LifecycleEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event model.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []model.LifecycleEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.LifecycleEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingSessions struct {
	mu        sync.Mutex
	completed []string
}

func (s *recordingSessions) Complete(_ uuid.UUID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, userID)
	return nil
}

// fixture 真實的 Redis 元件跑在 miniredis 上，DB 與排程以 mock 取代
type fixture struct {
	clock        *salewindow.ManualClock
	mr           *miniredis.Miniredis
	eventRepo    *mocks.MockEventRepository
	kindRepo     *mocks.MockTicketKindRepository
	reservations *mocks.MockReservationRepository
	expiry       *mocks.MockExpiryScheduler
	inventory    cache.SpotInventory
	cache        *cache.RedisReservationCache
	stream       queue.ReservationQueue
	vq           *queue.RedisVirtualQueue
	publisher    *recordingPublisher
	sessions     *recordingSessions
	sales        config.SalesConfig
	event        *model.Event
	kind         *model.TicketKind
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := salewindow.NewManualClock(baseTime)
	start := salesOpen
	f := &fixture{
		clock:        clock,
		mr:           mr,
		eventRepo:    mocks.NewMockEventRepository(),
		kindRepo:     mocks.NewMockTicketKindRepository(),
		reservations: mocks.NewMockReservationRepository(),
		expiry:       mocks.NewMockExpiryScheduler(),
		inventory:    cache.NewSpotInventory(client),
		cache:        cache.NewReservationCache(client).WithClock(clock.Now),
		stream:       queue.NewMemoryReservationQueue(10),
		vq:           queue.NewRedisVirtualQueue(client).WithClock(clock.Now),
		publisher:    &recordingPublisher{},
		sessions:     &recordingSessions{},
		sales:        config.DefaultSalesConfig(),
		event: &model.Event{
			ID:           1,
			EventID:      uuid.MustParse("a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11"),
			Slug:         "spring-concert",
			Name:         "Spring Concert",
			SalesStartAt: &start,
		},
		kind: &model.TicketKind{ID: 10, EventID: 1, Name: "General", Price: 50, TotalStock: 3, MaxPerUser: 1},
	}
	return f
}

func (f *fixture) eventService() service.EventService {
	return service.NewEventService(f.eventRepo, f.kindRepo, f.inventory, f.vq, f.clock)
}

func (f *fixture) queueService() service.QueueService {
	return service.NewQueueService(f.eventRepo, f.vq, f.publisher, f.sales, f.clock)
}

func (f *fixture) reservationService() service.ReservationService {
	return service.NewReservationService(service.ReservationDeps{
		Events:       f.eventRepo,
		Kinds:        f.kindRepo,
		Reservations: f.reservations,
		Inventory:    f.inventory,
		Cache:        f.cache,
		Stream:       f.stream,
		Queue:        f.vq,
		Expiry:       f.expiry,
		Publisher:    f.publisher,
		Sessions:     f.sessions,
		Clock:        f.clock,
	})
}
