package queue

import (
	"context"

	"go-gin-waiting-room/internal/model"
)

type Delivery struct {
	Data *model.Reservation
	Ack  func()
	Nack func(requeue bool)
}

// ReservationQueue 預約寫入 DB 前的緩衝，讓開賣尖峰只打 Redis
type ReservationQueue interface {
	PublishReservation(ctx context.Context, reservation *model.Reservation) error
	SubscribeReservations(ctx context.Context) (<-chan Delivery, error)
}

// MemoryReservationQueue 單機用的 channel 版本，重啟即遺失
type MemoryReservationQueue struct {
	ch chan *model.Reservation
}

func NewMemoryReservationQueue(bufferSize int) ReservationQueue {
	return &MemoryReservationQueue{
		ch: make(chan *model.Reservation, bufferSize),
	}
}

func (q *MemoryReservationQueue) PublishReservation(ctx context.Context, reservation *model.Reservation) error {
	select {
	case q.ch <- reservation:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryReservationQueue) SubscribeReservations(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case reservation := <-q.ch:
				d := Delivery{
					Data: reservation,
					Ack:  func() {},
					Nack: func(requeue bool) {
						if !requeue {
							return
						}
						select {
						case q.ch <- reservation:
						default:
						}
					},
				}
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
