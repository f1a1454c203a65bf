package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "go-gin-waiting-room/pkg/app_errors"
	"go-gin-waiting-room/pkg/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type Admitter interface {
	AdmitAll(ctx context.Context) error
}

type ReservationExpirer interface {
	Expire(ctx context.Context, reservationID uuid.UUID) error
}

type Handlers struct {
	admitter Admitter
	expirer  ReservationExpirer
	log      *zap.Logger
}

func NewHandlers(admitter Admitter, expirer ReservationExpirer) *Handlers {
	return &Handlers{
		admitter: admitter,
		expirer:  expirer,
		log:      logger.WithComponent("tasks"),
	}
}

func (h *Handlers) HandleQueueAdmit(ctx context.Context, _ *asynq.Task) error {
	if err := h.admitter.AdmitAll(ctx); err != nil {
		h.log.Error("queue admission failed", zap.Error(err))
		return err
	}
	return nil
}

func (h *Handlers) HandleReservationExpire(ctx context.Context, t *asynq.Task) error {
	var payload ReservationExpirePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	err := h.expirer.Expire(ctx, payload.ReservationID)
	switch {
	case err == nil:
		h.log.Info("reservation expiry processed",
			zap.String("reservation_id", payload.ReservationID.String()),
			zap.String("user_id", payload.UserID),
		)
		return nil
	case errors.Is(err, apperrors.ErrReservationNotFound):
		// worker 尚未寫入 DB，交給 asynq 重試
		return err
	default:
		h.log.Error("reservation expiry failed",
			zap.String("reservation_id", payload.ReservationID.String()),
			zap.Error(err),
		)
		return err
	}
}

func NewServeMux(h *Handlers) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeQueueAdmit, h.HandleQueueAdmit)
	mux.HandleFunc(TypeReservationExpire, h.HandleReservationExpire)
	return mux
}
