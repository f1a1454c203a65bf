package model

import (
	"time"

	"github.com/google/uuid"
)

type LifecycleEventType string

const (
	LifecycleWindowGranted        LifecycleEventType = "window.granted"
	LifecycleReservationCreated   LifecycleEventType = "reservation.reserved"
	LifecycleReservationPaid      LifecycleEventType = "reservation.paid"
	LifecycleReservationCancelled LifecycleEventType = "reservation.cancelled"
	LifecycleReservationExpired   LifecycleEventType = "reservation.expired"
)

// LifecycleEvent 發送到 MQ 的開賣流程事件
type LifecycleEvent struct {
	Type          LifecycleEventType `json:"type"`
	EventID       uuid.UUID          `json:"event_id"`
	UserID        string             `json:"user_id"`
	ReservationID *uuid.UUID         `json:"reservation_id,omitempty"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
	OccurredAt    time.Time          `json:"occurred_at"`
}
