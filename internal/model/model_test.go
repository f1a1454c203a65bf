package model_test

import (
	"testing"
	"time"

	"go-gin-waiting-room/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestEstimateWaitMinutes(t *testing.T) {
	tests := []struct {
		name     string
		position int
		rate     int
		want     int
	}{
		{"front of queue", 1, 10, 0},
		{"just behind front", 2, 10, 1},
		{"partial minute rounds up", 11, 10, 2},
		{"exact multiple", 20, 10, 2},
		{"long queue", 5000, 10, 500},
		{"invalid rate falls back to one per minute", 3, 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, model.EstimateWaitMinutes(tt.position, tt.rate))
		})
	}
}

func TestNewQueuePosition(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	pos := model.NewQueuePosition(42, 10, at)
	assert.Equal(t, model.QueuePosition{Position: 42, TotalAhead: 41, EstimatedWaitMinutes: 5, UpdatedAt: at}, pos)

	// 位置不會小於 1
	pos = model.NewQueuePosition(0, 10, at)
	assert.Equal(t, 1, pos.Position)
	assert.Equal(t, 0, pos.TotalAhead)
}

func TestPurchaseWindow(t *testing.T) {
	granted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := model.PurchaseWindow{GrantedAt: granted, ExpiresAt: granted.Add(10 * time.Minute)}

	assert.True(t, w.IsActive(granted.Add(599*time.Second+999*time.Millisecond)))
	assert.False(t, w.IsActive(granted.Add(10*time.Minute)))
	assert.Equal(t, time.Minute, w.Remaining(granted.Add(9*time.Minute)))
	assert.Equal(t, time.Duration(0), w.Remaining(granted.Add(11*time.Minute)))
}

func TestReservationStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to model.ReservationStatus
		want     bool
	}{
		{model.ReservationStatusReserved, model.ReservationStatusPaid, true},
		{model.ReservationStatusReserved, model.ReservationStatusCancelled, true},
		{model.ReservationStatusReserved, model.ReservationStatusExpired, true},
		{model.ReservationStatusPaid, model.ReservationStatusCancelled, false},
		{model.ReservationStatusExpired, model.ReservationStatusPaid, false},
		{model.ReservationStatusCancelled, model.ReservationStatusReserved, false},
		{model.ReservationStatusAvailable, model.ReservationStatusReserved, true},
		{model.ReservationStatus("bogus"), model.ReservationStatusPaid, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestReservation_RemainingMinutes(t *testing.T) {
	reservedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &model.Reservation{ReservedAt: reservedAt, ExpiresAt: reservedAt.Add(10 * time.Minute)}

	assert.Equal(t, 10, r.RemainingMinutes(reservedAt))
	assert.Equal(t, 6, r.RemainingMinutes(reservedAt.Add(4*time.Minute+30*time.Second)))
	assert.Equal(t, 0, r.RemainingMinutes(reservedAt.Add(10*time.Minute)))
}

func TestEvent_Availability(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	opens := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	past := now.Add(-time.Minute)

	t.Run("waiting room before sales start", func(t *testing.T) {
		e := &model.Event{WaitingRoomOpensAt: &opens, SalesStartAt: &future}
		assert.Equal(t, model.AvailabilityWaitingRoom, e.Availability(now, 100))
		assert.False(t, e.IsOpen(now))
	})

	t.Run("sold out", func(t *testing.T) {
		e := &model.Event{SalesStartAt: &past}
		assert.Equal(t, model.AvailabilitySoldOut, e.Availability(now, 0))
		assert.True(t, e.IsOpen(now))
	})

	t.Run("limited", func(t *testing.T) {
		e := &model.Event{SalesStartAt: &past}
		assert.Equal(t, model.AvailabilityLimited, e.Availability(now, model.LimitedAvailabilityThreshold-1))
		assert.Equal(t, model.AvailabilityAvailable, e.Availability(now, model.LimitedAvailabilityThreshold))
	})

	t.Run("unknown stock", func(t *testing.T) {
		e := &model.Event{}
		assert.Equal(t, model.AvailabilityAvailable, e.Availability(now, -1))
		assert.False(t, e.IsOpen(now))
	})
}
