package salewindow

import (
	"fmt"
	"time"

	"go-gin-waiting-room/internal/model"
	apperrors "go-gin-waiting-room/pkg/app_errors"

	"github.com/google/uuid"
)

const (
	msPerSecond = 1000
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour

	lastMinuteMs   = 60000
	startingSoonMs = 300000
)

type Notice string

const (
	NoticeNone           Notice = ""
	NoticeLessThanMinute Notice = "less_than_a_minute"
	NoticeStartingSoon   Notice = "starting_soon"
	NoticeSalesStarted   Notice = "sales_started"
)

func (n Notice) Message() string {
	switch n {
	case NoticeLessThanMinute:
		return "Almost there! Sales starting in less than a minute."
	case NoticeStartingSoon:
		return "Sales starting soon! Please stay on this page."
	case NoticeSalesStarted:
		return "Sales have started! Redirecting to queue..."
	}
	return ""
}

// Countdown 距離開賣的剩餘時間，Total 為毫秒（可為負）
type Countdown struct {
	Total   int64 `json:"total"`
	Days    int   `json:"days"`
	Hours   int   `json:"hours"`
	Minutes int   `json:"minutes"`
	Seconds int   `json:"seconds"`
}

func NewCountdown(salesStartAt, now time.Time) Countdown {
	total := salesStartAt.Sub(now).Milliseconds()
	c := Countdown{Total: total}
	if total <= 0 {
		return c
	}
	c.Days = int(total / msPerDay)
	c.Hours = int(total/msPerHour) % 24
	c.Minutes = int(total/msPerMinute) % 60
	c.Seconds = int(total/msPerSecond) % 60
	return c
}

// Notice 最後一分鐘持續閃爍；最後五分鐘偶數秒閃爍
func (c Countdown) Notice() (Notice, bool) {
	switch {
	case c.Total <= 0:
		return NoticeSalesStarted, false
	case c.Total <= lastMinuteMs:
		return NoticeLessThanMinute, true
	case c.Total <= startingSoonMs:
		return NoticeStartingSoon, c.Seconds%2 == 0
	}
	return NoticeNone, false
}

func (c Countdown) String() string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d", c.Days, c.Hours, c.Minutes, c.Seconds)
}

// WaitingRoomView 單一時間點的等候室畫面，供不需要串流的 client 輪詢
type WaitingRoomView struct {
	EventID    uuid.UUID  `json:"eventId"`
	State      State      `json:"state"`
	ServerTime time.Time  `json:"serverTime"`
	SalesStart time.Time  `json:"salesStart"`
	Countdown  Countdown  `json:"countdown"`
	Display    string     `json:"display"`
	Notice     Notice     `json:"notice,omitempty"`
	Message    string     `json:"message,omitempty"`
	Pulse      bool       `json:"pulse"`
	Navigate   Navigation `json:"navigate,omitempty"`
}

func NewWaitingRoomView(event *model.Event, now time.Time) (WaitingRoomView, error) {
	if event.SalesStartAt == nil || event.SalesStartAt.IsZero() {
		return WaitingRoomView{}, apperrors.ErrSalesStartMissing
	}
	cd := NewCountdown(*event.SalesStartAt, now)
	notice, pulse := cd.Notice()
	view := WaitingRoomView{
		EventID:    event.EventID,
		State:      StateClosed,
		ServerTime: now,
		SalesStart: *event.SalesStartAt,
		Countdown:  cd,
		Display:    cd.String(),
		Notice:     notice,
		Message:    notice.Message(),
		Pulse:      pulse,
	}
	if cd.Total <= 0 {
		view.State = StateQueued
		view.Navigate = NavigateQueue
	}
	return view, nil
}
