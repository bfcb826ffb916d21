package directory

import (
	"context"
	"sync"

	"github.com/samber/lo"

	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/errors"
)

const (
	UnknownDisplayName = "Unknown user"
)

// Directory memoizes profiles for one session. Each Resolve sends at most one
// batched lookup to the Identity collaborator, for the ids it has not seen yet.
type Directory struct {
	identity Identity

	mu    sync.Mutex
	cache map[string]entity.Profile
}

func NewDirectory(identity Identity) *Directory {
	return &Directory{
		identity: identity,
		cache:    make(map[string]entity.Profile),
	}
}

func Placeholder(userId string) entity.Profile {
	return entity.Profile{
		UserID:      userId,
		DisplayName: UnknownDisplayName,
	}
}

func (d *Directory) Resolve(ctx context.Context, userIds ...string) (map[string]entity.Profile, error) {
	ids := lo.Uniq(lo.Compact(userIds))
	resolved := make(map[string]entity.Profile, len(ids))

	d.mu.Lock()
	defer d.mu.Unlock()

	misses := lo.Filter(ids, func(id string, _ int) bool {
		profile, ok := d.cache[id]
		if ok {
			resolved[id] = profile
		}
		return !ok
	})
	if len(misses) == 0 {
		return resolved, nil
	}

	found, err := d.identity.LookupProfiles(ctx, misses)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDependencyFailure, "failed to look up %d profiles: %v", len(misses), err)
	}

	for _, id := range misses {
		if profile, ok := found[id]; ok {
			d.cache[id] = profile
			resolved[id] = profile
		} else {
			// not cached, the user may appear later
			resolved[id] = Placeholder(id)
		}
	}

	return resolved, nil
}

// Senders resolves the distinct senders of a page of messages.
func (d *Directory) Senders(ctx context.Context, messages []entity.Message) (map[string]entity.Profile, error) {
	return d.Resolve(ctx, lo.Map(messages, func(msg entity.Message, _ int) string {
		return msg.SenderID
	})...)
}

// Counterparts resolves every participant of the threads except userId.
func (d *Directory) Counterparts(ctx context.Context, userId string, threads []entity.Thread) (map[string]entity.Profile, error) {
	ids := lo.FlatMap(threads, func(thread entity.Thread, _ int) []string {
		return lo.Without(thread.ParticipantIDs(), userId)
	})
	return d.Resolve(ctx, ids...)
}
