package cron

import (
	"context"
	"fmt"
	"time"

	"deviceinventory/services/events"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// StartLifecycleWorker runs an asynq server that records device lifecycle
// events in the audit log. The caller owns shutdown via Shutdown().
func StartLifecycleWorker(redisOpts asynq.RedisClientOpt, concurrency int, logger *zap.Logger) (*asynq.Server, error) {
	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(events.TypeDeviceLifecycle, HandleLifecycleTask(logger))

	logger.Info("starting lifecycle event worker", zap.Int("concurrency", concurrency))
	const maxAttempts = 5

	var err error
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = srv.Start(mux); err == nil {
			return srv, nil
		}
		logger.Warn("lifecycle worker failed to start",
			zap.Int("attempt", attempts), zap.Int("maxAttempts", maxAttempts), zap.Error(err))
		if attempts < maxAttempts {
			time.Sleep(time.Duration(attempts*2) * time.Second)
		}
	}
	return nil, fmt.Errorf("lifecycle worker: giving up after %d attempts: %w", maxAttempts, err)
}

// HandleLifecycleTask writes each event to the audit log.
func HandleLifecycleTask(logger *zap.Logger) asynq.HandlerFunc {
	audit := logger.Named("audit")
	return func(ctx context.Context, task *asynq.Task) error {
		event, err := events.DecodeLifecycleTask(task)
		if err != nil {
			logger.Error("dropping lifecycle task", zap.Error(err))
			// Retrying an undecodable payload cannot succeed.
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}

		audit.Info(event.Type,
			zap.String("deviceId", event.DeviceID),
			zap.String("name", event.Name),
			zap.String("brand", event.Brand),
			zap.String("state", event.State.String()),
			zap.Time("occurredAt", event.OccurredAt),
		)
		return nil
	}
}
