package directory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/habiliai/lodgechat/directory"
	directorytest "github.com/habiliai/lodgechat/directory/test"
	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/errors"
)

func TestResolveBatchesAndMemoizes(t *testing.T) {
	ctx := context.Background()
	identity := &directorytest.IdentityMock{}
	identity.On("LookupProfiles", mock.Anything, []string{"tenant-1", "owner-1", "ghost"}).
		Return(map[string]entity.Profile{
			"tenant-1": {UserID: "tenant-1", Role: entity.RoleTenant, DisplayName: "Tara"},
			"owner-1":  {UserID: "owner-1", Role: entity.RoleOwner, DisplayName: "Omar"},
		}, nil).Once()
	identity.On("LookupProfiles", mock.Anything, []string{"ghost", "staff-1"}).
		Return(map[string]entity.Profile{
			"staff-1": {UserID: "staff-1", Role: entity.RoleStaff, DisplayName: "Sam"},
		}, nil).Once()

	dir := directory.NewDirectory(identity)

	messages := []entity.Message{
		{SenderID: "tenant-1"}, {SenderID: "owner-1"}, {SenderID: "tenant-1"},
		{SenderID: "ghost"}, {SenderID: "owner-1"},
	}
	senders, err := dir.Senders(ctx, messages)
	require.NoError(t, err)
	require.Len(t, senders, 3)
	require.Equal(t, "Tara", senders["tenant-1"].DisplayName)
	require.Equal(t, entity.RoleOwner, senders["owner-1"].Role)
	require.Equal(t, directory.UnknownDisplayName, senders["ghost"].DisplayName)

	// cached ids are never looked up again; the unknown one is retried
	profiles, err := dir.Resolve(ctx, "tenant-1", "ghost", "staff-1", "owner-1", "")
	require.NoError(t, err)
	require.Len(t, profiles, 4)
	require.Equal(t, "Sam", profiles["staff-1"].DisplayName)

	profiles, err = dir.Resolve(ctx, "tenant-1", "staff-1")
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	identity.AssertExpectations(t)
	identity.AssertNumberOfCalls(t, "LookupProfiles", 2)
}

func TestResolveWrapsCollaboratorFailure(t *testing.T) {
	identity := &directorytest.IdentityMock{}
	identity.On("LookupProfiles", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	dir := directory.NewDirectory(identity)
	_, err := dir.Resolve(context.Background(), "tenant-1")
	require.ErrorIs(t, err, errors.ErrDependencyFailure)
}

func TestCounterpartsSkipsSelf(t *testing.T) {
	identity := &directorytest.IdentityMock{}
	identity.On("LookupProfiles", mock.Anything, []string{"owner-1", "staff-1"}).
		Return(map[string]entity.Profile{
			"owner-1": {UserID: "owner-1", Role: entity.RoleOwner, DisplayName: "Omar"},
			"staff-1": {UserID: "staff-1", Role: entity.RoleStaff, DisplayName: "Sam"},
		}, nil).Once()

	threads := []entity.Thread{
		{Participants: []entity.Participant{{UserID: "me"}, {UserID: "owner-1"}}},
		{Participants: []entity.Participant{{UserID: "me"}, {UserID: "staff-1"}, {UserID: "owner-1"}}},
	}

	profiles, err := directory.NewDirectory(identity).Counterparts(context.Background(), "me", threads)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	require.NotContains(t, profiles, "me")
	identity.AssertExpectations(t)
}
