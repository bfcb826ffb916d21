package readmark

import (
	"context"
	"log/slog"
	"time"

	"github.com/jcooky/go-din"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/db"
	"github.com/habiliai/lodgechat/internal/mylog"
	"github.com/habiliai/lodgechat/thread"
)

type (
	Tracker interface {
		// MarkOpened moves the user's marker of the thread forward and returns its stored value.
		MarkOpened(ctx context.Context, threadId uint, userId string) (time.Time, error)
		UnreadThreads(ctx context.Context, userId string, candidates []uint) (ThreadSet, error)
	}

	ThreadSet map[uint]struct{}

	Option func(*tracker)

	tracker struct {
		logger  *slog.Logger
		db      *gorm.DB
		threads thread.Manager
		now     func() time.Time
	}
)

var (
	_ Tracker = (*tracker)(nil)
)

func (s ThreadSet) Has(threadId uint) bool {
	_, ok := s[threadId]
	return ok
}

// Unread is the unread predicate: never opened, or a message arrived after the last open.
func Unread(lastOpenedAt, lastMessageAt *time.Time) bool {
	if lastOpenedAt == nil {
		return true
	}
	return lastMessageAt != nil && lastMessageAt.After(*lastOpenedAt)
}

func WithClock(now func() time.Time) Option {
	return func(t *tracker) {
		t.now = now
	}
}

func NewTracker(logger *slog.Logger, db *gorm.DB, threads thread.Manager, opts ...Option) Tracker {
	t := &tracker{
		logger:  logger,
		db:      db,
		threads: threads,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *tracker) MarkOpened(ctx context.Context, threadId uint, userId string) (time.Time, error) {
	var marker entity.ReadMarker
	if err := db.Transaction(ctx, t.db, func(ctx context.Context, tx *gorm.DB) error {
		thr, err := t.threads.GetThread(ctx, threadId)
		if err != nil {
			return err
		}
		if !thr.HasParticipant(userId) {
			return errors.Wrapf(errors.ErrNotParticipant, "user %s in thread %d", userId, threadId)
		}

		// opening covers every message already appended, even when the clock lags the log
		stamp := t.now().UTC().Truncate(time.Microsecond)
		if thr.LastMessageAt != nil && thr.LastMessageAt.After(stamp) {
			stamp = thr.LastMessageAt.UTC()
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "thread_id"}, {Name: "user_id"}},
			DoUpdates: clause.Set{{
				Column: clause.Column{Name: "last_opened_at"},
				Value: gorm.Expr(
					"CASE WHEN excluded.last_opened_at > read_markers.last_opened_at " +
						"THEN excluded.last_opened_at ELSE read_markers.last_opened_at END",
				),
			}},
		}).Create(&entity.ReadMarker{
			ThreadID:     threadId,
			UserID:       userId,
			LastOpenedAt: stamp,
		}).Error; err != nil {
			return errors.Wrapf(err, "failed to upsert read marker")
		}

		if err := tx.Where("thread_id = ? AND user_id = ?", threadId, userId).Take(&marker).Error; err != nil {
			return errors.Wrapf(err, "failed to read marker back")
		}
		return nil
	}); err != nil {
		return time.Time{}, err
	}

	t.logger.Debug("thread opened", "thread_id", threadId, "user_id", userId, "at", marker.LastOpenedAt)
	return marker.LastOpenedAt, nil
}

func (t *tracker) UnreadThreads(ctx context.Context, userId string, candidates []uint) (ThreadSet, error) {
	unread := ThreadSet{}
	if len(candidates) == 0 {
		return unread, nil
	}

	_, tx := db.OpenSession(ctx, t.db)

	var markers []entity.ReadMarker
	if err := tx.Where("user_id = ? AND thread_id IN ?", userId, candidates).Find(&markers).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to find read markers")
	}
	openedAt := make(map[uint]time.Time, len(markers))
	for _, m := range markers {
		openedAt[m.ThreadID] = m.LastOpenedAt
	}

	// candidates come from callers; threads the user is not in are never reported
	var heads []entity.Thread
	if err := tx.Select("id", "last_message_at").
		Where("id IN ?", candidates).
		Where("id IN (?)", tx.Model(&entity.Participant{}).Select("thread_id").Where("user_id = ?", userId)).
		Find(&heads).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to find thread activity")
	}

	for _, head := range heads {
		var lastOpenedAt *time.Time
		if at, ok := openedAt[head.ID]; ok {
			lastOpenedAt = &at
		}
		if Unread(lastOpenedAt, head.LastMessageAt) {
			unread[head.ID] = struct{}{}
		}
	}

	return unread, nil
}

func init() {
	din.RegisterT(func(c *din.Container) (Tracker, error) {
		logger, err := din.Get[*slog.Logger](c, mylog.Key)
		if err != nil {
			return nil, err
		}

		return NewTracker(logger, din.MustGet[*gorm.DB](c, db.Key), din.MustGetT[thread.Manager](c)), nil
	})
}
