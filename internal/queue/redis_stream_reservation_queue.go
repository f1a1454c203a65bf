package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-gin-waiting-room/internal/model"
	"go-gin-waiting-room/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	StreamKey          = "reservations:stream"
	ConsumerGroupName  = "reservation-workers"
	ConsumerNamePrefix = "worker"

	payloadField = "reservation"
)

// RedisStreamConfig 零值欄位使用預設
type RedisStreamConfig struct {
	ClaimMinIdleTime   time.Duration // PEL 閒置超過此時間才由 XAUTOCLAIM 領回
	MaxRetryCount      int           // 超過視為毒藥訊息並丟棄
	ReadGroupBlockTime time.Duration
}

func defaultRedisStreamConfig() RedisStreamConfig {
	return RedisStreamConfig{
		ClaimMinIdleTime:   5 * time.Second,
		MaxRetryCount:      5,
		ReadGroupBlockTime: 2 * time.Second,
	}
}

type RedisStreamReservationQueue struct {
	client       *redis.Client
	streamKey    string
	groupName    string
	consumerName string
	cfg          RedisStreamConfig
	log          *zap.Logger
}

func NewRedisStreamReservationQueue(ctx context.Context, client *redis.Client, consumerID string, config *RedisStreamConfig) (ReservationQueue, error) {
	if consumerID == "" {
		consumerID = uuid.NewString()
	}
	cfg := defaultRedisStreamConfig()
	if config != nil {
		if config.ClaimMinIdleTime > 0 {
			cfg.ClaimMinIdleTime = config.ClaimMinIdleTime
		}
		if config.MaxRetryCount > 0 {
			cfg.MaxRetryCount = config.MaxRetryCount
		}
		if config.ReadGroupBlockTime > 0 {
			cfg.ReadGroupBlockTime = config.ReadGroupBlockTime
		}
	}

	q := &RedisStreamReservationQueue{
		client:       client,
		streamKey:    StreamKey,
		groupName:    ConsumerGroupName,
		consumerName: fmt.Sprintf("%s:%s", ConsumerNamePrefix, consumerID),
		cfg:          cfg,
		log:          logger.WithComponent("mq"),
	}
	if err := q.ensureConsumerGroup(ctx); err != nil {
		return nil, fmt.Errorf("ensure consumer group: %w", err)
	}
	return q, nil
}

func (q *RedisStreamReservationQueue) ensureConsumerGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.streamKey, q.groupName, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (q *RedisStreamReservationQueue) PublishReservation(ctx context.Context, reservation *model.Reservation) error {
	payload, err := json.Marshal(reservation)
	if err != nil {
		return fmt.Errorf("marshal reservation: %w", err)
	}
	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.streamKey,
		ID:     "*",
		Values: map[string]any{payloadField: string(payload)},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}
	return nil
}

func (q *RedisStreamReservationQueue) SubscribeReservations(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		done := make(chan struct{})
		go func() {
			defer close(done)
			q.runAutoClaim(ctx, out)
		}()
		q.runReadLoop(ctx, out)
		<-done
	}()
	return out, nil
}

func (q *RedisStreamReservationQueue) runReadLoop(ctx context.Context, out chan<- Delivery) {
	for ctx.Err() == nil {
		q.readAndDeliver(ctx, out)
	}
}

// readAndDeliver 只讀新訊息 (">")；已投遞未 ack 的留在 PEL，逾時後由 XAUTOCLAIM 重試
func (q *RedisStreamReservationQueue) readAndDeliver(ctx context.Context, out chan<- Delivery) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.groupName,
		Consumer: q.consumerName,
		Streams:  []string{q.streamKey, ">"},
		Count:    10,
		Block:    q.cfg.ReadGroupBlockTime,
	}).Result()

	if errors.Is(err, redis.Nil) {
		return
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		q.log.Error("XReadGroup failed", zap.Error(err))
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
		}
		return
	}

	for _, stream := range streams {
		if stream.Stream != q.streamKey {
			continue
		}
		for _, msg := range stream.Messages {
			if !q.deliver(ctx, out, msg) {
				return
			}
		}
	}
}

func (q *RedisStreamReservationQueue) runAutoClaim(ctx context.Context, out chan<- Delivery) {
	ticker := time.NewTicker(q.cfg.ClaimMinIdleTime)
	defer ticker.Stop()
	startID := "0-0"

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			claimed, nextID, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   q.streamKey,
				Group:    q.groupName,
				Consumer: q.consumerName,
				MinIdle:  q.cfg.ClaimMinIdleTime,
				Count:    10,
				Start:    startID,
			}).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				if ctx.Err() == nil {
					q.log.Error("XAutoClaim failed", zap.Error(err))
				}
				continue
			}
			if nextID == "" {
				nextID = "0-0"
			}
			startID = nextID

			for _, msg := range claimed {
				if !q.underRetryLimit(ctx, msg.ID) {
					continue
				}
				if !q.deliver(ctx, out, msg) {
					return
				}
			}
		}
	}
}

// underRetryLimit 超過重試上限的訊息直接 ack 丟棄
func (q *RedisStreamReservationQueue) underRetryLimit(ctx context.Context, messageID string) bool {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.streamKey,
		Group:  q.groupName,
		Start:  messageID,
		End:    messageID,
		Count:  1,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			q.log.Warn("XPendingExt failed", zap.String("message_id", messageID), zap.Error(err))
		}
		return true
	}
	if len(pending) == 0 || int(pending[0].RetryCount) < q.cfg.MaxRetryCount {
		return true
	}

	q.log.Warn("discard poison message",
		zap.String("message_id", messageID),
		zap.Int64("retries", pending[0].RetryCount),
		zap.Int("max_retries", q.cfg.MaxRetryCount),
	)
	_ = q.client.XAck(ctx, q.streamKey, q.groupName, messageID).Err()
	return false
}

// deliver ctx 結束時回傳 false
func (q *RedisStreamReservationQueue) deliver(ctx context.Context, out chan<- Delivery, msg redis.XMessage) bool {
	d, ok := q.newDelivery(ctx, msg)
	if !ok {
		return true
	}
	select {
	case out <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

func (q *RedisStreamReservationQueue) newDelivery(ctx context.Context, msg redis.XMessage) (Delivery, bool) {
	msgID := msg.ID
	raw, ok := msg.Values[payloadField].(string)
	if !ok {
		q.log.Warn("invalid message: missing reservation field", zap.String("message_id", msgID))
		_ = q.client.XAck(ctx, q.streamKey, q.groupName, msgID).Err()
		return Delivery{}, false
	}
	var reservation model.Reservation
	if err := json.Unmarshal([]byte(raw), &reservation); err != nil {
		q.log.Warn("unmarshal reservation failed", zap.String("message_id", msgID), zap.Error(err))
		_ = q.client.XAck(ctx, q.streamKey, q.groupName, msgID).Err()
		return Delivery{}, false
	}

	return Delivery{
		Data: &reservation,
		Ack: func() {
			if err := q.client.XAck(ctx, q.streamKey, q.groupName, msgID).Err(); err != nil {
				q.log.Error("XAck failed", zap.String("message_id", msgID), zap.Error(err))
			}
		},
		Nack: func(requeue bool) {
			if requeue {
				// 留在 PEL，ClaimMinIdleTime 後由 XAUTOCLAIM 領回，形成延遲重試
				q.log.Info("message nack(requeue), will retry",
					zap.String("message_id", msgID),
					zap.Duration("claim_min_idle", q.cfg.ClaimMinIdleTime),
				)
				return
			}
			if err := q.client.XAck(ctx, q.streamKey, q.groupName, msgID).Err(); err != nil {
				q.log.Error("XAck discard failed", zap.String("message_id", msgID), zap.Error(err))
			}
		},
	}, true
}
