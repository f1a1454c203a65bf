package model

import (
	"time"

	"github.com/google/uuid"
)

// 少於此數量視為「最後幾張」
const LimitedAvailabilityThreshold = 50

type Event struct {
	ID                 int        `json:"id" db:"id"`
	EventID            uuid.UUID  `json:"event_id" db:"event_id"`
	Slug               string     `json:"slug" db:"slug"`
	Name               string     `json:"name" db:"name"`
	Description        *string    `json:"description,omitempty" db:"description"`
	SalesStartAt       *time.Time `json:"sales_start_at,omitempty" db:"sales_start_at"`
	WaitingRoomOpensAt *time.Time `json:"waiting_room_opens_at,omitempty" db:"waiting_room_opens_at"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

type UpdateEventParams struct {
	Name               *string
	Description        *string
	SalesStartAt       *time.Time
	WaitingRoomOpensAt *time.Time
}

// IsOpen 開賣時間已到才算開放；未設定開賣時間一律視為未開放
func (e *Event) IsOpen(now time.Time) bool {
	return e.SalesStartAt != nil && !now.Before(*e.SalesStartAt)
}

// AvailabilityStatus 活動頁顯示的販售狀態
type AvailabilityStatus string

const (
	AvailabilityWaitingRoom AvailabilityStatus = "waiting_room"
	AvailabilitySoldOut     AvailabilityStatus = "sold_out"
	AvailabilityLimited     AvailabilityStatus = "limited"
	AvailabilityAvailable   AvailabilityStatus = "available"
)

// Availability 依等候室時間與剩餘數量判斷；remaining < 0 表示庫存未知
func (e *Event) Availability(now time.Time, remaining int) AvailabilityStatus {
	if e.WaitingRoomOpensAt != nil && !now.Before(*e.WaitingRoomOpensAt) &&
		e.SalesStartAt != nil && now.Before(*e.SalesStartAt) {
		return AvailabilityWaitingRoom
	}
	if remaining == 0 {
		return AvailabilitySoldOut
	}
	if remaining > 0 && remaining < LimitedAvailabilityThreshold {
		return AvailabilityLimited
	}
	return AvailabilityAvailable
}

// EventStatus 對應 GET /events/:uuid/event-status
type EventStatus struct {
	CurrentDate time.Time `json:"currentDate"`
	IsOpen      bool      `json:"isOpen"`
}

// EventDetail 活動詳情加上票種與販售狀態
type EventDetail struct {
	*Event
	TicketKinds  []*TicketKind      `json:"ticket_kinds"`
	Availability AvailabilityStatus `json:"availability"`
}
