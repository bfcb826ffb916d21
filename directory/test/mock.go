package directorytest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/habiliai/lodgechat/directory"
	"github.com/habiliai/lodgechat/entity"
)

type IdentityMock struct {
	mock.Mock
}

func (i *IdentityMock) LookupProfiles(ctx context.Context, userIds []string) (map[string]entity.Profile, error) {
	args := i.Called(ctx, userIds)
	profiles, _ := args.Get(0).(map[string]entity.Profile)
	return profiles, args.Error(1)
}

var (
	_ directory.Identity = (*IdentityMock)(nil)
)
