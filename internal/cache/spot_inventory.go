package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	apperrors "go-gin-waiting-room/pkg/app_errors"

	"github.com/redis/go-redis/v9"
)

type SpotInfo struct {
	Stock int
	Price float64
	Limit int
}

// SpotInventory 票種名額，開賣前由 OpenForSale 預熱到 Redis，扣減與回補都在 Lua 內完成
type SpotInventory interface {
	WarmUp(ctx context.Context, kindID int, stock int, price float64, limit int) error
	GetStock(ctx context.Context, kindID int) (int, error)
	GetInfo(ctx context.Context, kindID int) (SpotInfo, error)
	// Reserve 扣減名額並記錄使用者已保留數量，回傳單價
	Reserve(ctx context.Context, kindID int, quantity int, userID string) (float64, error)
	// Release 取消或過期時回補名額
	Release(ctx context.Context, kindID int, quantity int, userID string) error
}

type RedisSpotInventory struct {
	client *redis.Client
}

func NewSpotInventory(client *redis.Client) SpotInventory {
	return &RedisSpotInventory{
		client: client,
	}
}

func spotInfoKey(kindID int) string {
	return fmt.Sprintf("spot:%d:info", kindID)
}

func spotUsersKey(kindID int) string {
	return fmt.Sprintf("spot:%d:users", kindID)
}

var reserveSpotScript = redis.NewScript(`
	local info_key = KEYS[1]
	local users_key = KEYS[2]
	local user_id = ARGV[1]
	local qty = tonumber(ARGV[2])

	local info = redis.call('HMGET', info_key, 'stock', 'price', 'limit')
	local stock, price, limit = info[1], info[2], info[3]
	if not stock or not price or not limit then
		return {-3, '0'}
	end

	if tonumber(stock) < qty then
		return {-1, '0'}
	end

	local held = tonumber(redis.call('HGET', users_key, user_id) or '0')
	if held + qty > tonumber(limit) then
		return {-2, '0'}
	end

	redis.call('HINCRBY', info_key, 'stock', -qty)
	redis.call('HINCRBY', users_key, user_id, qty)
	return {1, tostring(price)}
`)

// 使用者沒有保留紀錄時不回補，避免重複取消造成超賣
var releaseSpotScript = redis.NewScript(`
	local info_key = KEYS[1]
	local users_key = KEYS[2]
	local user_id = ARGV[1]
	local qty = tonumber(ARGV[2])

	local held = tonumber(redis.call('HGET', users_key, user_id) or '0')
	if held < qty then
		return 0
	end

	redis.call('HINCRBY', info_key, 'stock', qty)
	if held == qty then
		redis.call('HDEL', users_key, user_id)
	else
		redis.call('HINCRBY', users_key, user_id, -qty)
	end
	return 1
`)

// WarmUp 重複呼叫只更新價格與上限，不會重置已扣減的庫存
func (m *RedisSpotInventory) WarmUp(ctx context.Context, kindID int, stock int, price float64, limit int) error {
	key := spotInfoKey(kindID)
	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "stock", stock)
		pipe.HSet(ctx, key, "price", price, "limit", limit)
		return nil
	})
	return err
}

func (m *RedisSpotInventory) GetStock(ctx context.Context, kindID int) (int, error) {
	val, err := m.client.HGet(ctx, spotInfoKey(kindID), "stock").Int()
	if errors.Is(err, redis.Nil) {
		return -1, apperrors.ErrTicketKindNotFound
	}
	return val, err
}

func (m *RedisSpotInventory) GetInfo(ctx context.Context, kindID int) (SpotInfo, error) {
	result, err := m.client.HGetAll(ctx, spotInfoKey(kindID)).Result()
	if err != nil {
		return SpotInfo{}, err
	}
	if len(result) == 0 {
		return SpotInfo{}, apperrors.ErrTicketKindNotFound
	}

	stock, err := strconv.Atoi(result["stock"])
	if err != nil {
		return SpotInfo{}, fmt.Errorf("invalid stock: %w", err)
	}
	price, err := strconv.ParseFloat(result["price"], 64)
	if err != nil {
		return SpotInfo{}, fmt.Errorf("invalid price: %w", err)
	}
	limit, err := strconv.Atoi(result["limit"])
	if err != nil {
		return SpotInfo{}, fmt.Errorf("invalid limit: %w", err)
	}

	return SpotInfo{Stock: stock, Price: price, Limit: limit}, nil
}

func (m *RedisSpotInventory) Reserve(ctx context.Context, kindID int, quantity int, userID string) (float64, error) {
	if quantity <= 0 {
		return 0, apperrors.ErrInvalidInput
	}

	keys := []string{spotInfoKey(kindID), spotUsersKey(kindID)}
	result, err := reserveSpotScript.Run(ctx, m.client, keys, userID, quantity).Slice()
	if err != nil {
		return 0, err
	}
	if len(result) != 2 {
		return 0, errors.New("unexpected reserve result")
	}

	code, _ := result[0].(int64)
	switch code {
	case 1:
		priceStr, _ := result[1].(string)
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid price: %w", err)
		}
		return price, nil
	case -1:
		return 0, apperrors.ErrInsufficientStock
	case -2:
		return 0, apperrors.ErrExceedsMaxPerUser
	case -3:
		return 0, apperrors.ErrTicketKindNotFound
	default:
		return 0, errors.New("unexpected reserve result")
	}
}

func (m *RedisSpotInventory) Release(ctx context.Context, kindID int, quantity int, userID string) error {
	keys := []string{spotInfoKey(kindID), spotUsersKey(kindID)}
	return releaseSpotScript.Run(ctx, m.client, keys, userID, quantity).Err()
}
