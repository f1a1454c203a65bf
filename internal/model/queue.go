package model

import (
	"time"

	"github.com/google/uuid"
)

// QueuePosition 排隊位置；Position 為 1 代表輪到使用者購買
type QueuePosition struct {
	Position             int       `json:"position"`
	TotalAhead           int       `json:"totalAhead"`
	EstimatedWaitMinutes int       `json:"estimatedWaitTime"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// NewQueuePosition 依每分鐘放行人數推算預估等待時間
func NewQueuePosition(position, admissionsPerMinute int, at time.Time) QueuePosition {
	if position < 1 {
		position = 1
	}
	return QueuePosition{
		Position:             position,
		TotalAhead:           position - 1,
		EstimatedWaitMinutes: EstimateWaitMinutes(position, admissionsPerMinute),
		UpdatedAt:            at,
	}
}

// EstimateWaitMinutes = ceil(position / admissionsPerMinute)，位置 1 已輪到，不需等待
func EstimateWaitMinutes(position, admissionsPerMinute int) int {
	if position <= 1 {
		return 0
	}
	if admissionsPerMinute <= 0 {
		admissionsPerMinute = 1
	}
	return (position + admissionsPerMinute - 1) / admissionsPerMinute
}

// PurchaseWindow 輪到後的限時購買時窗，同一 (user, event) 同時最多一個
type PurchaseWindow struct {
	GrantedAt time.Time `json:"grantedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (w PurchaseWindow) IsActive(now time.Time) bool {
	return now.Before(w.ExpiresAt)
}

// Remaining 時窗剩餘時間，過期回傳 0
func (w PurchaseWindow) Remaining(now time.Time) time.Duration {
	if !w.IsActive(now) {
		return 0
	}
	return w.ExpiresAt.Sub(now)
}

// QueueStatus 對應 GET /events/:uuid/queue
type QueueStatus struct {
	EventID  uuid.UUID       `json:"eventId"`
	State    string          `json:"state"`
	Position QueuePosition   `json:"position"`
	Window   *PurchaseWindow `json:"window,omitempty"`
}
