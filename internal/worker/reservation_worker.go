package worker

import (
	"context"

	"go-gin-waiting-room/internal/model"
	"go-gin-waiting-room/internal/queue"
	"go-gin-waiting-room/pkg/logger"

	"go.uber.org/zap"
)

// Dispatcher 把 stream 中的預約寫入 DB
type Dispatcher interface {
	DispatchReservation(ctx context.Context, reservation *model.Reservation) error
}

type ReservationWorker interface {
	// 訂閱預約隊列
	Start(ctx context.Context) error
}

type ReservationWorkerImpl struct {
	dispatcher Dispatcher
	queue      queue.ReservationQueue
	log        *zap.Logger
}

func NewReservationWorker(dispatcher Dispatcher, q queue.ReservationQueue) ReservationWorker {
	return &ReservationWorkerImpl{
		dispatcher: dispatcher,
		queue:      q,
		log:        logger.WithComponent("reservation-worker"),
	}
}

func (w *ReservationWorkerImpl) Start(ctx context.Context) error {
	msgs, err := w.queue.SubscribeReservations(ctx)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			if err := w.dispatcher.DispatchReservation(ctx, msg.Data); err != nil {
				// DB 暫時不可用，交回隊列重試
				w.log.Warn("dispatch reservation failed",
					zap.String("reservation_id", msg.Data.ReservationID.String()),
					zap.Error(err),
				)
				msg.Nack(true)
				continue
			}
			msg.Ack()
		}
	}()
	return nil
}
