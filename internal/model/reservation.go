package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// ReservationStatus 預約狀態類型
type ReservationStatus string

const (
	ReservationStatusAvailable   ReservationStatus = "available"
	ReservationStatusReserved    ReservationStatus = "reserved"
	ReservationStatusWaiting     ReservationStatus = "waiting"
	ReservationStatusCancelled   ReservationStatus = "cancelled"
	ReservationStatusExpired     ReservationStatus = "expired"
	ReservationStatusPaid        ReservationStatus = "paid"
	ReservationStatusWaitingList ReservationStatus = "waiting-list"
)

// IsValid 驗證狀態是否有效
func (s ReservationStatus) IsValid() bool {
	switch s {
	case ReservationStatusAvailable, ReservationStatusReserved, ReservationStatusWaiting,
		ReservationStatusCancelled, ReservationStatusExpired, ReservationStatusPaid,
		ReservationStatusWaitingList:
		return true
	}
	return false
}

// IsTerminal 已付款、取消、過期後不能再變更
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationStatusPaid || s == ReservationStatusCancelled || s == ReservationStatusExpired
}

// CanTransitionTo 檢查是否可以轉換到目標狀態
func (s ReservationStatus) CanTransitionTo(target ReservationStatus) bool {
	transitions := map[ReservationStatus][]ReservationStatus{
		ReservationStatusAvailable:   {ReservationStatusReserved, ReservationStatusWaiting, ReservationStatusWaitingList},
		ReservationStatusWaiting:     {ReservationStatusReserved, ReservationStatusCancelled, ReservationStatusWaitingList},
		ReservationStatusWaitingList: {ReservationStatusReserved, ReservationStatusCancelled},
		ReservationStatusReserved:    {ReservationStatusPaid, ReservationStatusCancelled, ReservationStatusExpired},
		ReservationStatusPaid:        {},
		ReservationStatusCancelled:   {},
		ReservationStatusExpired:     {},
	}

	allowed, ok := transitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == target {
			return true
		}
	}
	return false
}

// Reservation 預約模型，EventID / TicketKindID 為資料表內部 id
type Reservation struct {
	ID            int               `json:"id" db:"id"`
	ReservationID uuid.UUID         `json:"reservation_id" db:"reservation_id"`
	EventID       int               `json:"event_id" db:"event_id"`
	EventUUID     uuid.UUID         `json:"event_uuid" db:"-"`
	UserID        string            `json:"user_id" db:"user_id"`
	TicketKindID  int               `json:"ticket_kind_id" db:"ticket_kind_id"`
	Quantity      int               `json:"quantity" db:"quantity"`
	TotalPrice    float64           `json:"total_price" db:"total_price"`
	Status        ReservationStatus `json:"status" db:"status"`
	ReservedAt    time.Time         `json:"reserved_at" db:"reserved_at"`
	ExpiresAt     time.Time         `json:"expires_at" db:"expires_at"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at" db:"updated_at"`
}

// RemainingMinutes 剩餘分鐘數（無條件進位），已過期為 0
func (r *Reservation) RemainingMinutes(now time.Time) int {
	if !now.Before(r.ExpiresAt) {
		return 0
	}
	return int(math.Ceil(r.ExpiresAt.Sub(now).Minutes()))
}

// CreateReservationRequest 建立預約請求
type CreateReservationRequest struct {
	TicketKind string `json:"ticket_kind" binding:"required"`
}

// ReservationResult 建立預約結果；Existing 表示沿用使用者既有的預約
type ReservationResult struct {
	Reservation *Reservation `json:"reservation"`
	Existing    bool         `json:"existing"`
}

// ReservationStatusResponse 對應 GET /events/:uuid/reservation
type ReservationStatusResponse struct {
	Status           ReservationStatus `json:"status"`
	RemainingMinutes *int              `json:"remainingMinutes,omitempty"`
	Reservation      *Reservation      `json:"reservation,omitempty"`
	Message          string            `json:"message,omitempty"`
}
