package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go-gin-waiting-room/internal/model"
	apperrors "go-gin-waiting-room/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// VirtualQueue 每個活動一條「叫號」隊列：加入時取號，排程器定期推進 serving，
// 號碼 <= serving 的使用者即可領取購買時窗
type VirtualQueue interface {
	Join(ctx context.Context, eventID uuid.UUID, userID string) (int, error)
	Position(ctx context.Context, eventID uuid.UUID, userID string) (int, error)
	Advance(ctx context.Context, eventID uuid.UUID, n int) (int64, error)
	GrantWindow(ctx context.Context, eventID uuid.UUID, userID string, duration time.Duration) (model.PurchaseWindow, error)
	Window(ctx context.Context, eventID uuid.UUID, userID string) (model.PurchaseWindow, error)
	CompleteWindow(ctx context.Context, eventID uuid.UUID, userID string) error
	Leave(ctx context.Context, eventID uuid.UUID, userID string) error
	Activate(ctx context.Context, eventID uuid.UUID) error
	ActiveEvents(ctx context.Context) ([]uuid.UUID, error)
	Stats(ctx context.Context, eventID uuid.UUID) (QueueStats, error)
}

type QueueStats struct {
	Waiting int64 `json:"waiting"`
	Serving int64 `json:"serving"`
	LastSeq int64 `json:"lastSeq"`
}

const activeEventsKey = "waitroom:active"

type RedisVirtualQueue struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisVirtualQueue(client *redis.Client) *RedisVirtualQueue {
	return &RedisVirtualQueue{client: client, now: time.Now}
}

// WithClock 測試用，取代時窗發放的時間來源
func (q *RedisVirtualQueue) WithClock(now func() time.Time) *RedisVirtualQueue {
	q.now = now
	return q
}

type queueKeys struct {
	seq     string
	members string
	serving string
}

// hash tag 讓同一活動的 key 落在同一個 slot
func keysFor(eventID uuid.UUID) queueKeys {
	prefix := fmt.Sprintf("waitroom:{%s}", eventID)
	return queueKeys{
		seq:     prefix + ":seq",
		members: prefix + ":members",
		serving: prefix + ":serving",
	}
}

func windowKey(eventID uuid.UUID, userID string) string {
	return fmt.Sprintf("waitroom:{%s}:window:%s", eventID, userID)
}

// members 為 ZSET（score = 號碼），位置只計算仍在隊列中、排在前面且尚未放行的人；
// 已放行（號碼 <= serving）即為位置 1，第一個等待中的使用者為位置 2

// KEYS: seq, members, serving, window, active  ARGV: user, event
var joinScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[4]) == 1 then
		return 1
	end
	local seq = tonumber(redis.call('ZSCORE', KEYS[2], ARGV[1]) or 0)
	if seq == 0 then
		seq = redis.call('INCR', KEYS[1])
		redis.call('ZADD', KEYS[2], seq, ARGV[1])
	end
	redis.call('SADD', KEYS[5], ARGV[2])
	local serving = tonumber(redis.call('GET', KEYS[3]) or 1)
	if seq <= serving then
		return 1
	end
	return 2 + redis.call('ZCOUNT', KEYS[2], '(' .. serving, '(' .. seq)
`)

// KEYS: members, serving, window  ARGV: user
var positionScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[3]) == 1 then
		return 1
	end
	local seq = tonumber(redis.call('ZSCORE', KEYS[1], ARGV[1]) or 0)
	if seq == 0 then
		return -1
	end
	local serving = tonumber(redis.call('GET', KEYS[2]) or 1)
	if seq <= serving then
		return 1
	end
	return 2 + redis.call('ZCOUNT', KEYS[1], '(' .. serving, '(' .. seq)
`)

// 放行接下來 n 個仍在等待的使用者；等待人數不足 n 時推進到最後一個號碼之後
// KEYS: seq, serving, members  ARGV: n
var advanceScript = redis.NewScript(`
	local last = tonumber(redis.call('GET', KEYS[1]) or 0)
	local serving = tonumber(redis.call('GET', KEYS[2]) or 1)
	local nxt = last + 1
	local nth = redis.call('ZRANGEBYSCORE', KEYS[3], '(' .. serving, '+inf', 'WITHSCORES', 'LIMIT', tonumber(ARGV[1]) - 1, 1)
	if #nth > 0 then
		nxt = tonumber(nth[2])
	end
	if nxt < serving then nxt = serving end
	redis.call('SET', KEYS[2], nxt)
	return nxt
`)

// KEYS: window, members, serving  ARGV: user, "granted,expires", ttl ms
var grantScript = redis.NewScript(`
	local existing = redis.call('GET', KEYS[1])
	if existing then
		return existing
	end
	local seq = tonumber(redis.call('ZSCORE', KEYS[2], ARGV[1]) or 0)
	if seq == 0 then
		return -1
	end
	local serving = tonumber(redis.call('GET', KEYS[3]) or 1)
	if seq > serving then
		return -2
	end
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
	redis.call('ZREM', KEYS[2], ARGV[1])
	return ARGV[2]
`)

func (q *RedisVirtualQueue) Join(ctx context.Context, eventID uuid.UUID, userID string) (int, error) {
	k := keysFor(eventID)
	keys := []string{k.seq, k.members, k.serving, windowKey(eventID, userID), activeEventsKey}
	pos, err := joinScript.Run(ctx, q.client, keys, userID, eventID.String()).Int()
	if err != nil {
		return 0, fmt.Errorf("join queue: %w", err)
	}
	return pos, nil
}

func (q *RedisVirtualQueue) Position(ctx context.Context, eventID uuid.UUID, userID string) (int, error) {
	k := keysFor(eventID)
	keys := []string{k.members, k.serving, windowKey(eventID, userID)}
	pos, err := positionScript.Run(ctx, q.client, keys, userID).Int()
	if err != nil {
		return 0, fmt.Errorf("queue position: %w", err)
	}
	if pos < 0 {
		return 0, apperrors.ErrNotInQueue
	}
	return pos, nil
}

// Advance 放行 n 個等待中的使用者，已離開的號碼不佔名額
func (q *RedisVirtualQueue) Advance(ctx context.Context, eventID uuid.UUID, n int) (int64, error) {
	if n <= 0 {
		return 0, apperrors.ErrInvalidInput
	}
	k := keysFor(eventID)
	serving, err := advanceScript.Run(ctx, q.client, []string{k.seq, k.serving, k.members}, n).Int64()
	if err != nil {
		return 0, fmt.Errorf("advance queue: %w", err)
	}
	return serving, nil
}

// GrantWindow 冪等：已有時窗直接回傳，時窗 key 的 TTL 等於時窗長度
func (q *RedisVirtualQueue) GrantWindow(ctx context.Context, eventID uuid.UUID, userID string, duration time.Duration) (model.PurchaseWindow, error) {
	if duration <= 0 {
		return model.PurchaseWindow{}, apperrors.ErrInvalidInput
	}
	granted := q.now()
	proposed := encodeWindow(model.PurchaseWindow{GrantedAt: granted, ExpiresAt: granted.Add(duration)})

	k := keysFor(eventID)
	keys := []string{windowKey(eventID, userID), k.members, k.serving}
	res, err := grantScript.Run(ctx, q.client, keys, userID, proposed, duration.Milliseconds()).Result()
	if err != nil {
		return model.PurchaseWindow{}, fmt.Errorf("grant window: %w", err)
	}

	switch v := res.(type) {
	case string:
		return decodeWindow(v)
	case int64:
		if v == -1 {
			return model.PurchaseWindow{}, apperrors.ErrNotInQueue
		}
		return model.PurchaseWindow{}, apperrors.ErrNotAdmitted
	}
	return model.PurchaseWindow{}, fmt.Errorf("grant window: unexpected result %v", res)
}

func (q *RedisVirtualQueue) Window(ctx context.Context, eventID uuid.UUID, userID string) (model.PurchaseWindow, error) {
	raw, err := q.client.Get(ctx, windowKey(eventID, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return model.PurchaseWindow{}, apperrors.ErrNoPurchaseWindow
	}
	if err != nil {
		return model.PurchaseWindow{}, err
	}
	return decodeWindow(raw)
}

func (q *RedisVirtualQueue) CompleteWindow(ctx context.Context, eventID uuid.UUID, userID string) error {
	return q.client.Del(ctx, windowKey(eventID, userID)).Err()
}

func (q *RedisVirtualQueue) Leave(ctx context.Context, eventID uuid.UUID, userID string) error {
	k := keysFor(eventID)
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, k.members, userID)
		pipe.Del(ctx, windowKey(eventID, userID))
		return nil
	})
	return err
}

func (q *RedisVirtualQueue) Activate(ctx context.Context, eventID uuid.UUID) error {
	return q.client.SAdd(ctx, activeEventsKey, eventID.String()).Err()
}

func (q *RedisVirtualQueue) ActiveEvents(ctx context.Context) ([]uuid.UUID, error) {
	members, err := q.client.SMembers(ctx, activeEventsKey).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (q *RedisVirtualQueue) Stats(ctx context.Context, eventID uuid.UUID) (QueueStats, error) {
	k := keysFor(eventID)
	pipe := q.client.Pipeline()
	waiting := pipe.ZCard(ctx, k.members)
	serving := pipe.Get(ctx, k.serving)
	last := pipe.Get(ctx, k.seq)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return QueueStats{}, err
	}

	stats := QueueStats{Waiting: waiting.Val(), Serving: 1}
	if v, err := serving.Int64(); err == nil {
		stats.Serving = v
	}
	if v, err := last.Int64(); err == nil {
		stats.LastSeq = v
	}
	return stats, nil
}

func encodeWindow(w model.PurchaseWindow) string {
	return strconv.FormatInt(w.GrantedAt.UnixMilli(), 10) + "," + strconv.FormatInt(w.ExpiresAt.UnixMilli(), 10)
}

func decodeWindow(raw string) (model.PurchaseWindow, error) {
	granted, expires, ok := strings.Cut(raw, ",")
	if !ok {
		return model.PurchaseWindow{}, fmt.Errorf("invalid window value %q", raw)
	}
	g, err := strconv.ParseInt(granted, 10, 64)
	if err != nil {
		return model.PurchaseWindow{}, fmt.Errorf("invalid window value %q: %w", raw, err)
	}
	e, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return model.PurchaseWindow{}, fmt.Errorf("invalid window value %q: %w", raw, err)
	}
	return model.PurchaseWindow{
		GrantedAt: time.UnixMilli(g).UTC(),
		ExpiresAt: time.UnixMilli(e).UTC(),
	}, nil
}
