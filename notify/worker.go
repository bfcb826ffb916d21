package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/mylog"
)

// Sink hands a notification to the channel that reaches the recipient (push, email).
type Sink func(ctx context.Context, event NewMessage) error

// LogSink only records notifications. It stands in until a push provider is configured.
func LogSink(logger *slog.Logger) Sink {
	return func(_ context.Context, event NewMessage) error {
		logger.Info("new message notification",
			"thread_id", event.ThreadID,
			"message_id", event.MessageID,
			"recipient", event.RecipientID,
		)
		return nil
	}
}

func NewServeMux(logger *slog.Logger, sink Sink) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeNewMessage, func(ctx context.Context, task *asynq.Task) error {
		event, err := ParseTask(task)
		if err != nil {
			logger.Warn("dropping malformed notification", mylog.Err(err))
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return sink(ctx, event)
	})
	return mux
}

// RunWorker consumes the notification queue until ctx is done.
func RunWorker(ctx context.Context, logger *slog.Logger, redisUrl, queue string, concurrency int, sink Sink) error {
	opt, err := asynq.ParseRedisURI(redisUrl)
	if err != nil {
		return errors.Wrapf(err, "failed to parse redis url")
	}
	if queue == "" {
		queue = "default"
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
	})
	if err := srv.Start(NewServeMux(logger, sink)); err != nil {
		return errors.Wrapf(err, "failed to start notification worker")
	}

	logger.Info("notification worker started", "queue", queue, "concurrency", concurrency)
	<-ctx.Done()
	srv.Shutdown()
	logger.Info("notification worker stopped")

	return nil
}
