package model

import "time"

// TicketKind 活動底下的票種，庫存於開賣時預熱到 Redis
type TicketKind struct {
	ID         int       `json:"id" db:"id"`
	EventID    int       `json:"event_id" db:"event_id"`
	Name       string    `json:"name" db:"name"`
	Price      float64   `json:"price" db:"price"`
	TotalStock int       `json:"total_stock" db:"total_stock"`
	MaxPerUser int       `json:"max_per_user" db:"max_per_user"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// SpotAvailability 對應檢查名額的回應
type SpotAvailability struct {
	IsAvailable bool `json:"isAvailable"`
	WaitingList bool `json:"waitingList"`
	Remaining   int  `json:"remaining"`
}
