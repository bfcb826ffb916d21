package lodgechat

import (
	"context"
	"sync"

	"github.com/samber/lo"

	"github.com/habiliai/lodgechat/directory"
	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/mylog"
	"github.com/habiliai/lodgechat/thread"
)

type (
	// Session holds the state of one signed-in user: the draft being typed, the
	// attachment staged for the next send, open thread views and a profile cache.
	Session struct {
		messenger *Messenger
		userId    string
		directory *directory.Directory

		sendMu sync.Mutex

		mu     sync.Mutex
		draft  string
		staged *StagedAttachment
		views  map[uint]*View
	}

	StagedAttachment struct {
		FileName    string
		ContentType string
		Data        []byte
	}

	InboxEntry struct {
		Thread       entity.Thread
		Unread       bool
		LastMessage  *entity.Message
		Counterparts []entity.Profile
	}
)

func (s *Session) UserID() string {
	return s.userId
}

func (s *Session) Directory() *directory.Directory {
	return s.directory
}

func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.draft = text
}

func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.draft
}

// StageAttachment replaces the attachment sent with the next message. Nothing is
// uploaded until Send.
func (s *Session) StageAttachment(fileName, contentType string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.staged = &StagedAttachment{
		FileName:    fileName,
		ContentType: contentType,
		Data:        data,
	}
}

func (s *Session) Staged() *StagedAttachment {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.staged
}

func (s *Session) ClearAttachment() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.staged = nil
}

// OpenDirect returns the direct thread with peer, creating it on first contact.
func (s *Session) OpenDirect(ctx context.Context, peer string) (*entity.Thread, error) {
	thr, err := s.messenger.threads.FindOrCreateDirect(ctx, s.userId, peer)
	if errors.Is(err, errors.ErrConflictRetryable) {
		// the concurrent creator has committed by now
		thr, err = s.messenger.threads.FindOrCreateDirect(ctx, s.userId, peer)
	}
	return thr, err
}

func (s *Session) RaiseComplaint(ctx context.Context, assignee, subject, description string, opts ...thread.CaseOption) (*entity.Thread, error) {
	return s.messenger.threads.CreateComplaintCase(ctx, s.userId, assignee, subject, description, opts...)
}

func (s *Session) UpdateCaseStatus(ctx context.Context, threadId uint, status entity.CaseStatus) (*entity.Thread, error) {
	return s.messenger.threads.UpdateCaseStatus(ctx, threadId, s.userId, status)
}

// Send posts the draft and the staged attachment to threadId. The attachment is
// uploaded first; when that fails nothing is posted and the draft is kept.
func (s *Session) Send(ctx context.Context, threadId uint) (*entity.Message, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	draft, staged := s.draft, s.staged
	s.mu.Unlock()

	probe := entity.Message{Body: draft}
	if staged != nil {
		probe.AttachmentID = lo.ToPtr(uint(0))
	}
	if !probe.HasContent() {
		return nil, errors.WithStack(errors.ErrEmptyMessage)
	}
	if err := s.messenger.threads.RequireParticipant(ctx, threadId, s.userId); err != nil {
		return nil, err
	}

	var attachmentId *uint
	if staged != nil {
		uploaded, err := s.messenger.attachments.Upload(ctx, s.userId, staged.FileName, staged.ContentType, staged.Data)
		if err != nil {
			return nil, err
		}
		attachmentId = &uploaded.ID
	}

	msg, err := s.messenger.messages.Post(ctx, threadId, s.userId, draft, attachmentId)
	if err != nil {
		if attachmentId != nil {
			s.messenger.logger.Warn("attachment uploaded but message not posted", "attachment_id", *attachmentId, "thread_id", threadId, mylog.Err(err))
		}
		return nil, err
	}

	s.mu.Lock()
	if s.draft == draft {
		s.draft = ""
	}
	if s.staged == staged {
		s.staged = nil
	}
	s.mu.Unlock()

	return msg, nil
}

// Inbox lists the user's threads, most recently active first, with unread flags,
// last message previews and the profiles of the other participants.
func (s *Session) Inbox(ctx context.Context, kind *entity.ThreadKind) ([]InboxEntry, error) {
	threads, err := s.messenger.threads.ListForUser(ctx, s.userId, kind)
	if err != nil {
		return nil, err
	}
	if len(threads) == 0 {
		return []InboxEntry{}, nil
	}

	threadIds := lo.Map(threads, func(t entity.Thread, _ int) uint {
		return t.ID
	})

	unread, err := s.messenger.tracker.UnreadThreads(ctx, s.userId, threadIds)
	if err != nil {
		return nil, err
	}
	latest, err := s.messenger.messages.Latest(ctx, threadIds)
	if err != nil {
		return nil, err
	}
	profiles, err := s.directory.Counterparts(ctx, s.userId, threads)
	if err != nil {
		return nil, err
	}

	return lo.Map(threads, func(t entity.Thread, _ int) InboxEntry {
		entry := InboxEntry{
			Thread: t,
			Unread: unread.Has(t.ID),
			Counterparts: lo.FilterMap(t.ParticipantIDs(), func(id string, _ int) (entity.Profile, bool) {
				profile, ok := profiles[id]
				return profile, ok && id != s.userId
			}),
		}
		if msg, ok := latest[t.ID]; ok {
			entry.LastMessage = &msg
		}
		return entry
	}), nil
}

// Close closes every view opened by the session.
func (s *Session) Close() {
	s.mu.Lock()
	views := lo.Values(s.views)
	s.views = make(map[uint]*View)
	s.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
}

func (s *Session) forgetView(v *View) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.views[v.threadId] == v {
		delete(s.views, v.threadId)
	}
}
