package lodgechat

import (
	"context"
	"sync"
	"time"

	"github.com/habiliai/lodgechat/delivery"
	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/mylog"
	"github.com/habiliai/lodgechat/message"
)

// View is an open thread: its history plus every message delivered since it was
// opened, each exactly once and in thread order. While a view is open the thread
// stays read for its user.
type View struct {
	session  *Session
	threadId uint
	thread   *entity.Thread

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	updates chan entity.Message

	mu       sync.Mutex
	stream   *delivery.Stream
	messages []entity.Message
	seen     map[uint]struct{}
	openedAt time.Time
	closed   bool
}

// Open subscribes to threadId before backfilling its history, so no message
// appended in between is missed; overlaps are dropped by message id.
func (s *Session) Open(ctx context.Context, threadId uint) (*View, error) {
	s.mu.Lock()
	if v, ok := s.views[threadId]; ok && !v.Closed() {
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	thr, err := s.messenger.threads.GetThread(ctx, threadId)
	if err != nil {
		return nil, err
	}
	if !thr.HasParticipant(s.userId) {
		return nil, errors.Wrapf(errors.ErrNotParticipant, "user %s in thread %d", s.userId, threadId)
	}

	viewCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	v := &View{
		session:  s,
		threadId: threadId,
		thread:   thr,
		ctx:      viewCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
		updates:  make(chan entity.Message, s.messenger.streamBuffer),
		seen:     make(map[uint]struct{}),
	}

	v.stream = s.messenger.dispatcher.SubscribeStream(threadId, s.messenger.streamBuffer)
	if err := v.backfill(ctx, nil, false); err != nil {
		v.stream.Close()
		cancel()
		return nil, err
	}
	if err := v.markOpened(ctx); err != nil {
		v.stream.Close()
		cancel()
		return nil, err
	}

	s.mu.Lock()
	if prev, ok := s.views[threadId]; ok {
		defer prev.Close()
	}
	s.views[threadId] = v
	s.mu.Unlock()

	go v.run()

	return v, nil
}

func (v *View) ThreadID() uint {
	return v.threadId
}

func (v *View) Thread() *entity.Thread {
	return v.thread
}

// Messages returns a snapshot of the view in thread order.
func (v *View) Messages() []entity.Message {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]entity.Message, len(v.messages))
	copy(out, v.messages)
	return out
}

// Updates receives each message appended to the view after Open. It is a
// notification channel: when the reader falls behind, notifications are dropped
// but Messages still has everything.
func (v *View) Updates() <-chan entity.Message {
	return v.updates
}

func (v *View) OpenedAt() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.openedAt
}

// Senders resolves the profiles of everyone who wrote in the view so far.
func (v *View) Senders(ctx context.Context) (map[string]entity.Profile, error) {
	return v.session.directory.Senders(ctx, v.Messages())
}

func (v *View) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.closed
}

func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	stream := v.stream
	v.mu.Unlock()

	stream.Close()
	v.cancel()
	<-v.done
	v.session.forgetView(v)
}

func (v *View) run() {
	defer close(v.done)
	defer close(v.updates)

	logger := v.session.messenger.logger
	for {
		v.mu.Lock()
		stream := v.stream
		v.mu.Unlock()

		select {
		case <-v.ctx.Done():
			return
		case msg, ok := <-stream.C:
			if !ok {
				if v.Closed() || v.ctx.Err() != nil {
					return
				}
				logger.Info("view fell behind, resubscribing", "thread_id", v.threadId, mylog.Err(stream.Err()))
				if err := v.resync(); err != nil {
					logger.Error("failed to resync view", "thread_id", v.threadId, mylog.Err(err))
					return
				}
				continue
			}
			if !v.append(msg) {
				continue
			}
			if err := v.markOpened(v.ctx); err != nil && v.ctx.Err() == nil {
				logger.Warn("failed to mark thread opened", "thread_id", v.threadId, mylog.Err(err))
			}
			select {
			case v.updates <- msg:
			default:
			}
		}
	}
}

// resync replaces an overflowed stream and backfills what it dropped.
func (v *View) resync() error {
	stream := v.session.messenger.dispatcher.SubscribeStream(v.threadId, v.session.messenger.streamBuffer)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		stream.Close()
		return nil
	}
	v.stream = stream
	var cursor *message.Cursor
	if n := len(v.messages); n > 0 {
		last := message.CursorOf(&v.messages[n-1])
		cursor = &last
	}
	v.mu.Unlock()

	if err := v.backfill(v.ctx, cursor, true); err != nil {
		return err
	}
	return v.markOpened(v.ctx)
}

func (v *View) backfill(ctx context.Context, cursor *message.Cursor, notify bool) error {
	for msg, err := range v.session.messenger.messages.List(ctx, v.threadId, cursor) {
		if err != nil {
			return err
		}
		if v.append(msg) && notify {
			select {
			case v.updates <- msg:
			default:
			}
		}
	}
	return nil
}

func (v *View) append(msg entity.Message) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.seen[msg.ID]; ok {
		return false
	}
	if n := len(v.messages); n > 0 && !v.messages[n-1].Before(&msg) {
		// already covered by a newer backfill
		return false
	}
	v.seen[msg.ID] = struct{}{}
	v.messages = append(v.messages, msg)
	return true
}

func (v *View) markOpened(ctx context.Context) error {
	at, err := v.session.messenger.tracker.MarkOpened(ctx, v.threadId, v.session.userId)
	if err != nil {
		return err
	}

	v.mu.Lock()
	if at.After(v.openedAt) {
		v.openedAt = at
	}
	v.mu.Unlock()
	return nil
}
