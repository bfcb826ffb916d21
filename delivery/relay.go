package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/mylog"
)

const (
	relayChannelPrefix = "lodgechat:thread:"
	relayPublishWait   = 2 * time.Second
)

type (
	// RedisRelay mirrors local publishes to other instances through redis pub/sub
	// and feeds their publishes into the local dispatcher.
	RedisRelay struct {
		logger *slog.Logger
		client *redis.Client
		local  Publisher
		origin string
	}

	relayEnvelope struct {
		Origin  string         `json:"origin"`
		Message entity.Message `json:"message"`
	}
)

var (
	_ Publisher = (*RedisRelay)(nil)
)

func NewRedisRelay(logger *slog.Logger, client *redis.Client, local Publisher) *RedisRelay {
	return &RedisRelay{
		logger: logger,
		client: client,
		local:  local,
		origin: uuid.NewString(),
	}
}

func relayChannel(threadId uint) string {
	return fmt.Sprintf("%s%d", relayChannelPrefix, threadId)
}

func (r *RedisRelay) Publish(threadId uint, msg entity.Message) {
	r.local.Publish(threadId, msg)

	payload, err := json.Marshal(relayEnvelope{Origin: r.origin, Message: msg})
	if err != nil {
		r.logger.Error("failed to encode relay envelope", mylog.Err(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), relayPublishWait)
	defer cancel()
	if err := r.client.Publish(ctx, relayChannel(threadId), payload).Err(); err != nil {
		r.logger.Warn("failed to relay message", "thread_id", threadId, "message_id", msg.ID, mylog.Err(err))
	}
}

// Run consumes remote publishes until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, relayChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return errors.Wrapf(err, "failed to subscribe relay channels")
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(m.Payload)
		}
	}
}

func (r *RedisRelay) handle(payload string) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.logger.Warn("dropping malformed relay envelope", mylog.Err(err))
		return
	}
	if env.Origin == r.origin {
		return
	}

	r.local.Publish(env.Message.ThreadID, env.Message)
}
