package tasks

import (
	"fmt"
	"time"

	"go-gin-waiting-room/pkg/logger"

	"github.com/hibiken/asynq"
)

func NewServer(redisOpt asynq.RedisClientOpt, concurrency int) *asynq.Server {
	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueCritical: 6,
			QueueDefault:  3,
		},
		Logger: logger.WithComponent("asynq").Sugar(),
	})
}

// NewScheduler 每隔 interval 觸發一次放行
func NewScheduler(redisOpt asynq.RedisClientOpt, interval time.Duration) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   logger.WithComponent("asynq-scheduler").Sugar(),
	})
	if _, err := scheduler.Register(fmt.Sprintf("@every %s", interval), NewQueueAdmitTask()); err != nil {
		return nil, fmt.Errorf("register admission task: %w", err)
	}
	return scheduler, nil
}
