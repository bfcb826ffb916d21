package notifytest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/habiliai/lodgechat/notify"
)

type NotifierMock struct {
	mock.Mock
}

func (n *NotifierMock) NotifyNewMessage(ctx context.Context, event notify.NewMessage) error {
	args := n.Called(ctx, event)
	return args.Error(0)
}

var (
	_ notify.Notifier = (*NotifierMock)(nil)
)
