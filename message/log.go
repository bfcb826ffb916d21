package message

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/jcooky/go-din"
	"gorm.io/gorm"

	"github.com/habiliai/lodgechat/delivery"
	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/db"
	"github.com/habiliai/lodgechat/internal/mylog"
	"github.com/habiliai/lodgechat/internal/stringutils"
	"github.com/habiliai/lodgechat/notify"
	"github.com/habiliai/lodgechat/thread"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	notifyTimeout   = 5 * time.Second
)

type (
	Log interface {
		Post(ctx context.Context, threadId uint, senderId string, body string, attachmentId *uint) (*entity.Message, error)
		List(ctx context.Context, threadId uint, cursor *Cursor) iter.Seq2[entity.Message, error]
		ListPage(ctx context.Context, threadId uint, cursor *Cursor, limit int) ([]entity.Message, *Cursor, error)
		Count(ctx context.Context, threadId uint) (int64, error)
		Latest(ctx context.Context, threadIds []uint) (map[uint]entity.Message, error)
	}

	Option func(*messageLog)

	messageLog struct {
		logger    *slog.Logger
		db        *gorm.DB
		threads   thread.Manager
		publisher delivery.Publisher
		notifier  notify.Notifier
		now       func() time.Time
		pageSize  int

		// per-thread stripes keep outbox order equal to append order in this process
		stripes [64]sync.Mutex

		outboxMu sync.Mutex
		outboxes map[uint]*outbox
	}

	// outbox holds committed messages of one thread until they are published.
	// At most one poster drains it at a time.
	outbox struct {
		queue    []entity.Message
		draining bool
	}
)

var (
	_ Log = (*messageLog)(nil)
)

func WithClock(now func() time.Time) Option {
	return func(l *messageLog) {
		l.now = now
	}
}

func WithPageSize(size int) Option {
	return func(l *messageLog) {
		l.pageSize = size
	}
}

func NewLog(
	logger *slog.Logger,
	db *gorm.DB,
	threads thread.Manager,
	publisher delivery.Publisher,
	notifier notify.Notifier,
	opts ...Option,
) Log {
	l := &messageLog{
		logger:    logger,
		db:        db,
		threads:   threads,
		publisher: publisher,
		notifier:  notifier,
		now:       time.Now,
		pageSize:  defaultPageSize,
		outboxes:  make(map[uint]*outbox),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *messageLog) Post(ctx context.Context, threadId uint, senderId string, body string, attachmentId *uint) (*entity.Message, error) {
	msg := entity.Message{
		ThreadID:     threadId,
		SenderID:     senderId,
		Body:         stringutils.SanitizeText(body),
		AttachmentID: attachmentId,
	}
	if !msg.HasContent() {
		return nil, errors.WithStack(errors.ErrEmptyMessage)
	}

	recipients, drain, err := l.append(ctx, &msg)
	if err != nil {
		return nil, err
	}

	postedTotal.Inc()
	if drain {
		l.drain(threadId)
	}
	l.notify(ctx, msg, recipients)

	return &msg, nil
}

// append commits msg and queues it for publication while holding the thread's stripe.
// drain reports whether the caller must publish the outbox.
func (l *messageLog) append(ctx context.Context, msg *entity.Message) (recipients []string, drain bool, err error) {
	threadId, senderId, attachmentId := msg.ThreadID, msg.SenderID, msg.AttachmentID

	stripe := &l.stripes[threadId%uint(len(l.stripes))]
	stripe.Lock()
	defer stripe.Unlock()

	if err := db.Transaction(ctx, l.db, func(ctx context.Context, tx *gorm.DB) error {
		participants, err := l.threads.Participants(ctx, threadId)
		if err != nil {
			return err
		}
		if len(participants) == 0 {
			if _, err := l.threads.GetThread(ctx, threadId); err != nil {
				return err
			}
		}
		isMember := false
		for _, p := range participants {
			if p.UserID == senderId {
				isMember = true
			} else {
				recipients = append(recipients, p.UserID)
			}
		}
		if !isMember {
			return errors.Wrapf(errors.ErrNotParticipant, "user %s in thread %d", senderId, threadId)
		}

		if attachmentId != nil {
			var attachment entity.Attachment
			if r := tx.Limit(1).Find(&attachment, *attachmentId); r.Error != nil {
				return errors.Wrapf(r.Error, "failed to find attachment")
			} else if r.RowsAffected == 0 {
				return errors.Wrapf(errors.ErrNotFound, "attachment %d", *attachmentId)
			}
			if attachment.OwnerUserID != senderId {
				return errors.Wrapf(errors.ErrAttachmentNotOwned, "attachment %d", *attachmentId)
			}

			var linked int64
			if err := tx.Model(&entity.Message{}).Where("attachment_id = ?", *attachmentId).Count(&linked).Error; err != nil {
				return errors.Wrapf(err, "failed to check attachment usage")
			} else if linked > 0 {
				return errors.Wrapf(errors.ErrInvalidState, "attachment %d is already posted", *attachmentId)
			}
		}

		// the increment takes the thread row's write lock, so concurrent posters queue here
		r := tx.Model(&entity.Thread{}).Where("id = ?", threadId).UpdateColumn("last_seq", gorm.Expr("last_seq + 1"))
		if r.Error != nil {
			return errors.Wrapf(r.Error, "failed to advance thread sequence")
		} else if r.RowsAffected == 0 {
			return errors.Wrapf(errors.ErrThreadNotFound, "thread %d", threadId)
		}

		var head entity.Thread
		if err := tx.Select("id", "last_seq", "last_message_at").Take(&head, threadId).Error; err != nil {
			return errors.Wrapf(err, "failed to read thread sequence")
		}

		createdAt := l.now().UTC().Truncate(time.Microsecond)
		if head.LastMessageAt != nil && !createdAt.After(*head.LastMessageAt) {
			createdAt = head.LastMessageAt.UTC().Add(time.Microsecond)
		}
		msg.Seq = head.LastSeq
		msg.CreatedAt = createdAt

		if err := tx.Create(msg).Error; err != nil {
			return errors.Wrapf(err, "failed to append message")
		}
		if err := tx.Model(&entity.Thread{}).Where("id = ?", threadId).UpdateColumn("last_message_at", createdAt).Error; err != nil {
			return errors.Wrapf(err, "failed to update thread activity")
		}

		return nil
	}); err != nil {
		return nil, false, err
	}

	l.outboxMu.Lock()
	defer l.outboxMu.Unlock()

	ob, ok := l.outboxes[threadId]
	if !ok {
		ob = &outbox{}
		l.outboxes[threadId] = ob
	}
	ob.queue = append(ob.queue, *msg)
	if ob.draining {
		return recipients, false, nil
	}
	ob.draining = true
	return recipients, true, nil
}

// drain publishes the thread's outbox in order, outside of any stripe. Messages
// posted from delivery callbacks land in the same outbox and are published by this loop.
func (l *messageLog) drain(threadId uint) {
	for {
		l.outboxMu.Lock()
		ob := l.outboxes[threadId]
		if len(ob.queue) == 0 {
			delete(l.outboxes, threadId)
			l.outboxMu.Unlock()
			return
		}
		batch := ob.queue
		ob.queue = nil
		l.outboxMu.Unlock()

		for _, msg := range batch {
			l.publisher.Publish(threadId, msg)
		}
	}
}

// notify is fire-and-forget; failures never affect the committed message.
func (l *messageLog) notify(ctx context.Context, msg entity.Message, recipients []string) {
	if len(recipients) == 0 {
		return
	}

	go func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()

		for _, recipient := range recipients {
			if err := l.notifier.NotifyNewMessage(ctx, notify.NewMessage{
				ThreadID:    msg.ThreadID,
				MessageID:   msg.ID,
				SenderID:    msg.SenderID,
				RecipientID: recipient,
			}); err != nil {
				l.logger.Warn("failed to notify recipient", "thread_id", msg.ThreadID, "recipient", recipient, mylog.Err(err))
			}
		}
	}(context.WithoutCancel(ctx))
}

func (l *messageLog) List(ctx context.Context, threadId uint, cursor *Cursor) iter.Seq2[entity.Message, error] {
	return func(yield func(entity.Message, error) bool) {
		if _, err := l.threads.GetThread(ctx, threadId); err != nil {
			yield(entity.Message{}, err)
			return
		}

		next := cursor
		for {
			page, nextCursor, err := l.ListPage(ctx, threadId, next, l.pageSize)
			if err != nil {
				yield(entity.Message{}, err)
				return
			}
			for _, msg := range page {
				if !yield(msg, nil) {
					return
				}
			}
			if nextCursor == nil || len(page) < l.pageSize {
				return
			}
			next = nextCursor
		}
	}
}

func (l *messageLog) ListPage(ctx context.Context, threadId uint, cursor *Cursor, limit int) ([]entity.Message, *Cursor, error) {
	_, tx := db.OpenSession(ctx, l.db)

	if limit <= 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)

	stmt := tx.Model(&entity.Message{}).Where("thread_id = ?", threadId)
	if cursor != nil {
		at := cursor.CreatedAt.UTC()
		stmt = stmt.Where("created_at > ? OR (created_at = ? AND id > ?)", at, at, cursor.ID)
	}

	var messages []entity.Message
	if err := stmt.
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, nil, errors.Wrapf(err, "failed to find messages")
	}

	if len(messages) == 0 {
		return messages, cursor, nil
	}

	next := CursorOf(&messages[len(messages)-1])
	return messages, &next, nil
}

func (l *messageLog) Count(ctx context.Context, threadId uint) (int64, error) {
	_, tx := db.OpenSession(ctx, l.db)

	var count int64
	if err := tx.Model(&entity.Message{}).Where("thread_id = ?", threadId).Count(&count).Error; err != nil {
		return 0, errors.Wrapf(err, "failed to count messages")
	}

	return count, nil
}

func (l *messageLog) Latest(ctx context.Context, threadIds []uint) (map[uint]entity.Message, error) {
	latest := make(map[uint]entity.Message, len(threadIds))
	if len(threadIds) == 0 {
		return latest, nil
	}

	_, tx := db.OpenSession(ctx, l.db)

	var messages []entity.Message
	if err := tx.Model(&entity.Message{}).
		Joins("JOIN threads ON threads.id = messages.thread_id AND threads.last_seq = messages.seq").
		Where("messages.thread_id IN ?", threadIds).
		Find(&messages).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to find latest messages")
	}

	for _, msg := range messages {
		latest[msg.ThreadID] = msg
	}

	return latest, nil
}

func init() {
	din.RegisterT(func(c *din.Container) (Log, error) {
		logger, err := din.Get[*slog.Logger](c, mylog.Key)
		if err != nil {
			return nil, err
		}

		return NewLog(
			logger,
			din.MustGet[*gorm.DB](c, db.Key),
			din.MustGetT[thread.Manager](c),
			din.MustGetT[delivery.Publisher](c),
			din.MustGetT[notify.Notifier](c),
		), nil
	})
}
