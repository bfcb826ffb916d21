package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jcooky/go-din"

	"github.com/habiliai/lodgechat/config"
	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/mylog"
)

const (
	TaskTypeNewMessage = "message:new"
)

type (
	// NewMessage tells an external notifier that RecipientID has a new message in ThreadID.
	// Formatting and delivery (email, push) happen outside this module.
	NewMessage struct {
		ThreadID    uint   `json:"thread_id"`
		MessageID   uint   `json:"message_id"`
		SenderID    string `json:"sender_id"`
		RecipientID string `json:"recipient_id"`
	}

	Notifier interface {
		NotifyNewMessage(ctx context.Context, event NewMessage) error
	}

	AsynqNotifier struct {
		client *asynq.Client
		queue  string
	}

	NopNotifier struct{}
)

var (
	_ Notifier = (*AsynqNotifier)(nil)
	_ Notifier = NopNotifier{}
)

func NewAsynqNotifier(redisUrl string, queue string) (*AsynqNotifier, error) {
	opt, err := asynq.ParseRedisURI(redisUrl)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse redis url")
	}

	return &AsynqNotifier{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func NewTask(event NewMessage) (*asynq.Task, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode notification")
	}
	return asynq.NewTask(TaskTypeNewMessage, payload), nil
}

// ParseTask decodes a task produced by NewTask. Consumers use it on the worker side.
func ParseTask(task *asynq.Task) (NewMessage, error) {
	var event NewMessage
	if task.Type() != TaskTypeNewMessage {
		return event, errors.Wrapf(errors.ErrInvalidParams, "unexpected task type %q", task.Type())
	}
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		return event, errors.Wrapf(errors.ErrInvalidParams, "malformed notification payload: %v", err)
	}
	return event, nil
}

func (n *AsynqNotifier) NotifyNewMessage(ctx context.Context, event NewMessage) error {
	task, err := NewTask(event)
	if err != nil {
		return err
	}

	opts := []asynq.Option{asynq.MaxRetry(3)}
	if n.queue != "" {
		opts = append(opts, asynq.Queue(n.queue))
	}
	if _, err := n.client.EnqueueContext(ctx, task, opts...); err != nil {
		return errors.Wrapf(errors.ErrDependencyFailure, "failed to enqueue notification: %v", err)
	}

	return nil
}

func (n *AsynqNotifier) Close() error {
	return n.client.Close()
}

func (NopNotifier) NotifyNewMessage(context.Context, NewMessage) error {
	return nil
}

func init() {
	din.RegisterT(func(c *din.Container) (Notifier, error) {
		logger, err := din.Get[*slog.Logger](c, mylog.Key)
		if err != nil {
			return nil, err
		}
		conf := din.MustGetT[*config.RealtimeConfig](c)

		if conf.RedisUrl == "" {
			return NopNotifier{}, nil
		}

		notifier, err := NewAsynqNotifier(conf.RedisUrl, conf.NotifyQueue)
		if err != nil {
			return nil, err
		}
		go func() {
			<-c.Done()
			if err := notifier.Close(); err != nil {
				logger.Warn("failed to close notifier", mylog.Err(err))
			}
		}()

		return notifier, nil
	})
}
