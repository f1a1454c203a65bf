package tasks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	TypeQueueAdmit        = "queue:admit"
	TypeReservationExpire = "reservation:expire"

	QueueCritical = "critical"
	QueueDefault  = "default"
)

type ReservationExpirePayload struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	EventID       uuid.UUID `json:"event_id"`
	UserID        string    `json:"user_id"`
}

// NewQueueAdmitTask 週期性放行所有進行中活動的隊列
func NewQueueAdmitTask() *asynq.Task {
	return asynq.NewTask(TypeQueueAdmit, nil, asynq.Queue(QueueCritical), asynq.MaxRetry(0))
}

// NewReservationExpireTask 以 reservation id 當作 task id，同一筆預約只會排程一次
func NewReservationExpireTask(payload ReservationExpirePayload, expiresAt time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReservationExpire, data,
		asynq.Queue(QueueDefault),
		asynq.TaskID(expireTaskID(payload.ReservationID)),
		asynq.ProcessAt(expiresAt),
		asynq.MaxRetry(10),
	), nil
}

func expireTaskID(reservationID uuid.UUID) string {
	return "reservation-expire:" + reservationID.String()
}
