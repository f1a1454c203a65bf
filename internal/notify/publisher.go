package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go-gin-waiting-room/internal/model"
	"go-gin-waiting-room/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher 送出開賣流程事件（取得時窗、預約、付款、取消、過期）給下游系統
type Publisher interface {
	Publish(ctx context.Context, event model.LifecycleEvent) error
	Close() error
}

// Channel amqp091 channel 中用到的部分
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       Channel
	exchange string
	mu       sync.Mutex
}

// DialAMQP 連線並宣告 durable topic exchange，routing key 為事件類型
func DialAMQP(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp exchange declare: %w", err)
	}

	p := NewAMQPPublisher(ch, exchange)
	p.conn = conn
	return p, nil
}

func NewAMQPPublisher(ch Channel, exchange string) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: exchange}
}

func (p *AMQPPublisher) Publish(ctx context.Context, event model.LifecycleEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal lifecycle event: %w", err)
	}

	// amqp channel 不可併發使用
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		MessageId:    fmt.Sprintf("%s:%s:%s", event.Type, event.EventID, event.UserID),
		Body:         body,
	})
}

func (p *AMQPPublisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// NopPublisher 未設定 AMQP_URL 時使用，只寫 debug log
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, event model.LifecycleEvent) error {
	logger.WithComponent("notify").Debug("lifecycle event (not published)",
		zap.String("type", string(event.Type)),
		zap.String("event_id", event.EventID.String()),
		zap.String("user_id", event.UserID),
	)
	return nil
}

func (NopPublisher) Close() error { return nil }

// Emit 事件發送失敗不影響主要流程，只記錄警告
func Emit(ctx context.Context, p Publisher, event model.LifecycleEvent) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		logger.WithComponent("notify").Warn("publish lifecycle event failed",
			zap.String("type", string(event.Type)),
			zap.String("event_id", event.EventID.String()),
			zap.Error(err),
		)
	}
}
