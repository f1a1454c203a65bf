package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-gin-waiting-room/internal/model"
	apperrors "go-gin-waiting-room/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ReservationCache 預約的輔助快取，只用來在 worker 寫入 DB 前找回剛建立的預約，不是資料來源
type ReservationCache interface {
	Save(ctx context.Context, reservation *model.Reservation) error
	Load(ctx context.Context, eventID uuid.UUID, userID string) (*model.Reservation, error)
	Delete(ctx context.Context, eventID uuid.UUID, userID string) error
}

type RedisReservationCache struct {
	client *redis.Client
	now    func() time.Time
}

func NewReservationCache(client *redis.Client) *RedisReservationCache {
	return &RedisReservationCache{client: client, now: time.Now}
}

// WithClock 測試用，TTL 以此時間來源計算
func (c *RedisReservationCache) WithClock(now func() time.Time) *RedisReservationCache {
	c.now = now
	return c
}

func reservationKey(eventID uuid.UUID, userID string) string {
	return fmt.Sprintf("reservation:%s:%s", eventID, userID)
}

func (c *RedisReservationCache) Save(ctx context.Context, reservation *model.Reservation) error {
	ttl := reservation.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return c.Delete(ctx, reservation.EventUUID, reservation.UserID)
	}
	data, err := json.Marshal(reservation)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, reservationKey(reservation.EventUUID, reservation.UserID), data, ttl).Err()
}

func (c *RedisReservationCache) Load(ctx context.Context, eventID uuid.UUID, userID string) (*model.Reservation, error) {
	data, err := c.client.Get(ctx, reservationKey(eventID, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}

	var reservation model.Reservation
	if err := json.Unmarshal(data, &reservation); err != nil {
		// 壞掉的快取直接丟棄
		_ = c.Delete(ctx, eventID, userID)
		return nil, apperrors.ErrReservationNotFound
	}
	return &reservation, nil
}

func (c *RedisReservationCache) Delete(ctx context.Context, eventID uuid.UUID, userID string) error {
	return c.client.Del(ctx, reservationKey(eventID, userID)).Err()
}

// Reconcile 以 DB 為準；DB 尚未寫入時，只在快取的預約仍未過期時採用
func Reconcile(persisted, cached *model.Reservation, now time.Time) *model.Reservation {
	if persisted != nil {
		if cached == nil || persisted.ReservationID == cached.ReservationID || persisted.CreatedAt.After(cached.ReservedAt) {
			return persisted
		}
		// 快取中是比 DB 舊紀錄更新的預約，worker 還沒寫入
		if persisted.Status.IsTerminal() && cached.Status == model.ReservationStatusReserved && now.Before(cached.ExpiresAt) {
			return cached
		}
		return persisted
	}
	if cached != nil && cached.Status == model.ReservationStatusReserved && now.Before(cached.ExpiresAt) {
		return cached
	}
	return nil
}
