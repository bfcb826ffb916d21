package notify_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/notify"
)

func TestTaskRoundTrip(t *testing.T) {
	event := notify.NewMessage{ThreadID: 4, MessageID: 17, SenderID: "owner-1", RecipientID: "tenant-2"}

	task, err := notify.NewTask(event)
	require.NoError(t, err)
	require.Equal(t, notify.TaskTypeNewMessage, task.Type())

	decoded, err := notify.ParseTask(task)
	require.NoError(t, err)
	require.Equal(t, event, decoded)
}

func TestParseTaskRejectsForeignTasks(t *testing.T) {
	_, err := notify.ParseTask(asynq.NewTask("invoice:due", []byte(`{}`)))
	require.ErrorIs(t, err, errors.ErrInvalidParams)

	_, err = notify.ParseTask(asynq.NewTask(notify.TaskTypeNewMessage, []byte(`nope`)))
	require.ErrorIs(t, err, errors.ErrInvalidParams)
}

func TestServeMuxDispatchesToSink(t *testing.T) {
	var received []notify.NewMessage
	mux := notify.NewServeMux(slog.New(slog.NewTextHandler(io.Discard, nil)), func(_ context.Context, event notify.NewMessage) error {
		received = append(received, event)
		return nil
	})

	event := notify.NewMessage{ThreadID: 2, MessageID: 5, SenderID: "staff-1", RecipientID: "tenant-1"}
	task, err := notify.NewTask(event)
	require.NoError(t, err)

	require.NoError(t, mux.ProcessTask(context.Background(), task))
	require.Equal(t, []notify.NewMessage{event}, received)

	err = mux.ProcessTask(context.Background(), asynq.NewTask(notify.TaskTypeNewMessage, []byte(`{`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Len(t, received, 1)
}
