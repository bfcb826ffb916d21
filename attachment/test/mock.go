package attachmenttest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/habiliai/lodgechat/attachment"
)

type StorageMock struct {
	mock.Mock
}

func (s *StorageMock) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	args := s.Called(ctx, key, data, contentType)
	return args.String(0), args.Error(1)
}

func (s *StorageMock) URL(ctx context.Context, ref string) (string, error) {
	args := s.Called(ctx, ref)
	return args.String(0), args.Error(1)
}

var (
	_ attachment.Storage = (*StorageMock)(nil)
)
