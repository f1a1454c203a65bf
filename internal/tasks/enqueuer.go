package tasks

import (
	"context"
	"errors"
	"fmt"

	"go-gin-waiting-room/internal/model"

	"github.com/hibiken/asynq"
)

// Enqueuer asynq.Client 中用到的部分
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type ExpiryScheduler interface {
	ScheduleExpiry(ctx context.Context, reservation *model.Reservation) error
}

type AsynqExpiryScheduler struct {
	client Enqueuer
}

func NewExpiryScheduler(client Enqueuer) ExpiryScheduler {
	return &AsynqExpiryScheduler{client: client}
}

func (s *AsynqExpiryScheduler) ScheduleExpiry(ctx context.Context, reservation *model.Reservation) error {
	task, err := NewReservationExpireTask(ReservationExpirePayload{
		ReservationID: reservation.ReservationID,
		EventID:       reservation.EventUUID,
		UserID:        reservation.UserID,
	}, reservation.ExpiresAt)
	if err != nil {
		return err
	}

	_, err = s.client.EnqueueContext(ctx, task)
	// 重送的預約已經排程過
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("schedule reservation expiry: %w", err)
	}
	return nil
}
