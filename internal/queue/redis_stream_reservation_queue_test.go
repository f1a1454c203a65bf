package queue_test

import (
	"context"
	"testing"
	"time"

	"go-gin-waiting-room/internal/model"
	"go-gin-waiting-room/internal/queue"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStreamReservationQueue(t *testing.T) {
	t.Run("Success - publish, consume and ack", func(t *testing.T) {
		client, _ := newTestRedis(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q, err := queue.NewRedisStreamReservationQueue(ctx, client, "test", &queue.RedisStreamConfig{
			ReadGroupBlockTime: 50 * time.Millisecond,
		})
		require.NoError(t, err)

		res := &model.Reservation{
			ReservationID: uuid.New(),
			EventUUID:     uuid.New(),
			UserID:        "user-1",
			Quantity:      1,
			Status:        model.ReservationStatusReserved,
		}
		require.NoError(t, q.PublishReservation(ctx, res))

		msgs, err := q.SubscribeReservations(ctx)
		require.NoError(t, err)

		select {
		case d := <-msgs:
			assert.Equal(t, res.ReservationID, d.Data.ReservationID)
			assert.Equal(t, "user-1", d.Data.UserID)
			d.Ack()
		case <-time.After(2 * time.Second):
			t.Fatal("no delivery received")
		}

		pending, err := client.XPending(context.Background(), queue.StreamKey, queue.ConsumerGroupName).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(0), pending.Count)
	})

	t.Run("Success - group creation is idempotent", func(t *testing.T) {
		client, _ := newTestRedis(t)
		ctx := context.Background()

		_, err := queue.NewRedisStreamReservationQueue(ctx, client, "a", nil)
		require.NoError(t, err)
		_, err = queue.NewRedisStreamReservationQueue(ctx, client, "b", nil)
		assert.NoError(t, err)
	})
}

func TestMemoryReservationQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := queue.NewMemoryReservationQueue(4)

	res := &model.Reservation{ReservationID: uuid.New()}
	require.NoError(t, q.PublishReservation(ctx, res))

	msgs, err := q.SubscribeReservations(ctx)
	require.NoError(t, err)

	d := <-msgs
	assert.Same(t, res, d.Data)
	d.Nack(true)

	redelivered := <-msgs
	assert.Same(t, res, redelivered.Data)
	redelivered.Ack()
}
