package jsonrpc

import (
	"net/http"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/jcooky/go-din"
	"github.com/mokiat/gog"
	"github.com/samber/lo"

	"github.com/habiliai/lodgechat"
	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/auth"
	"github.com/habiliai/lodgechat/message"
	"github.com/habiliai/lodgechat/thread"
)

// MessagingServiceName is the service part of every method name, e.g. "Messaging.PostMessage".
const MessagingServiceName = "Messaging"

type MessagingService struct {
	messenger *lodgechat.Messenger
}

func (s *MessagingService) session(r *http.Request) (*lodgechat.Session, error) {
	userId, err := auth.Caller(r)
	if err != nil {
		return nil, err
	}
	return s.messenger.NewSession(userId)
}

func (s *MessagingService) FindOrCreateDirect(r *http.Request, args *FindOrCreateDirectRequest, reply *Thread) error {
	session, err := s.session(r)
	if err != nil {
		return err
	}

	thr, err := session.OpenDirect(r.Context(), args.PeerID)
	if err != nil {
		return err
	}

	*reply = NewThread(thr)
	return nil
}

func (s *MessagingService) CreateComplaintCase(r *http.Request, args *CreateComplaintCaseRequest, reply *Thread) error {
	session, err := s.session(r)
	if err != nil {
		return err
	}

	thr, err := session.RaiseComplaint(r.Context(), args.AssigneeID, args.Subject, args.Description,
		thread.WithCaseContext(thread.CaseContext{
			PropertyID: args.PropertyID,
			UnitID:     args.UnitID,
			Category:   args.Category,
		}))
	if err != nil {
		return err
	}

	*reply = NewThread(thr)
	return nil
}

func (s *MessagingService) CreateGroup(r *http.Request, args *CreateGroupRequest, reply *Thread) error {
	session, err := s.session(r)
	if err != nil {
		return err
	}

	thr, err := s.messenger.Threads().CreateGroup(r.Context(), session.UserID(), args.Subject, args.MemberIDs)
	if err != nil {
		return err
	}

	*reply = NewThread(thr)
	return nil
}

func (s *MessagingService) AddParticipant(r *http.Request, args *AddParticipantRequest, _ *json2.EmptyResponse) error {
	session, err := s.session(r)
	if err != nil {
		return err
	}

	return s.messenger.Threads().AddParticipant(r.Context(), args.ThreadID, session.UserID(), args.UserID)
}

func (s *MessagingService) ListThreads(r *http.Request, args *ListThreadsRequest, reply *ListThreadsResponse) error {
	session, err := s.session(r)
	if err != nil {
		return err
	}

	var kind *entity.ThreadKind
	if args.Kind != "" {
		kind = gog.PtrOf(entity.ThreadKind(args.Kind))
	}

	inbox, err := session.Inbox(r.Context(), kind)
	if err != nil {
		return err
	}

	reply.Threads = gog.Map(inbox, NewInboxThread)
	return nil
}

func (s *MessagingService) GetThread(r *http.Request, args *GetThreadRequest, reply *Thread) error {
	session, err := s.session(r)
	if err != nil {
		return err
	}

	thr, err := s.messenger.Threads().GetThread(r.Context(), args.ThreadID)
	if err != nil {
		return err
	}
	if !thr.HasParticipant(session.UserID()) {
		return errors.Wrapf(errors.ErrNotParticipant, "user %s in thread %d", session.UserID(), args.ThreadID)
	}

	*reply = NewThread(thr)
	return nil
}

func (s *MessagingService) UpdateCaseStatus(r *http.Request, args *UpdateCaseStatusRequest, reply *Thread) error {
	session, err := s.session(r)
	if err != nil {
		return err
	}

	status := entity.CaseStatus(args.Status)
	if !status.Valid() {
		return errors.Wrapf(errors.ErrInvalidParams, "unknown case status %q", args.Status)
	}

	thr, err := session.UpdateCaseStatus(r.Context(), args.ThreadID, status)
	if err != nil {
		return err
	}

	*reply = NewThread(thr)
	return nil
}

func (s *MessagingService) ReassignCase(r *http.Request, args *ReassignCaseRequest, reply *Thread) error {
	session, err := s.session(r)
	if err != nil {
		return err
	}

	thr, err := s.messenger.Threads().ReassignCase(r.Context(), args.ThreadID, session.UserID(), args.AssigneeID)
	if err != nil {
		return err
	}

	*reply = NewThread(thr)
	return nil
}

func (s *MessagingService) PostMessage(r *http.Request, args *PostMessageRequest, reply *entity.Message) error {
	session, err := s.session(r)
	if err != nil {
		return err
	}

	msg, err := s.messenger.Messages().Post(r.Context(), args.ThreadID, session.UserID(), args.Body, args.AttachmentID)
	if err != nil {
		return err
	}

	*reply = *msg
	return nil
}

func (s *MessagingService) GetMessages(r *http.Request, args *GetMessagesRequest, reply *GetMessagesResponse) error {
	session, err := s.session(r)
	if err != nil {
		return err
	}
	if err := s.messenger.Threads().RequireParticipant(r.Context(), args.ThreadID, session.UserID()); err != nil {
		if _, getErr := s.messenger.Threads().GetThread(r.Context(), args.ThreadID); getErr != nil {
			return getErr
		}
		return err
	}

	cursor, err := message.ParseCursor(args.Cursor)
	if err != nil {
		return err
	}

	messages, next, err := s.messenger.Messages().ListPage(r.Context(), args.ThreadID, cursor, args.Limit)
	if err != nil {
		return err
	}

	senders, err := session.Directory().Senders(r.Context(), messages)
	if err != nil {
		return err
	}

	reply.Messages = messages
	reply.Senders = senders
	if next != nil {
		reply.NextCursor = next.String()
	}
	return nil
}

func (s *MessagingService) MarkOpened(r *http.Request, args *MarkOpenedRequest, reply *MarkOpenedResponse) error {
	session, err := s.session(r)
	if err != nil {
		return err
	}

	at, err := s.messenger.Tracker().MarkOpened(r.Context(), args.ThreadID, session.UserID())
	if err != nil {
		return err
	}

	reply.LastOpenedAt = at
	return nil
}

func (s *MessagingService) GetUnread(r *http.Request, args *GetUnreadRequest, reply *GetUnreadResponse) error {
	session, err := s.session(r)
	if err != nil {
		return err
	}

	candidates := args.ThreadIDs
	if len(candidates) == 0 {
		threads, err := s.messenger.Threads().ListForUser(r.Context(), session.UserID(), nil)
		if err != nil {
			return err
		}
		candidates = gog.Map(threads, func(t entity.Thread) uint {
			return t.ID
		})
	}

	unread, err := s.messenger.Tracker().UnreadThreads(r.Context(), session.UserID(), candidates)
	if err != nil {
		return err
	}

	reply.ThreadIDs = lo.Filter(candidates, func(id uint, _ int) bool {
		return unread.Has(id)
	})
	return nil
}

func (s *MessagingService) ResolveAttachment(r *http.Request, args *ResolveAttachmentRequest, reply *ResolveAttachmentResponse) error {
	session, err := s.session(r)
	if err != nil {
		return err
	}

	resolved, err := s.messenger.Attachments().ResolveFor(r.Context(), session.UserID(), args.AttachmentID)
	if err != nil {
		return err
	}

	*reply = *resolved
	return nil
}

func (s *MessagingService) UploadAttachment(r *http.Request, args *UploadAttachmentRequest, reply *UploadAttachmentResponse) error {
	session, err := s.session(r)
	if err != nil {
		return err
	}

	uploaded, err := s.messenger.Attachments().Upload(r.Context(), session.UserID(), args.FileName, args.ContentType, args.Data)
	if err != nil {
		return err
	}

	reply.AttachmentID = uploaded.ID
	reply.DisplayName = uploaded.DisplayName
	reply.ContentType = uploaded.ContentType
	reply.ByteSize = uploaded.ByteSize
	return nil
}

func RegisterMessagingService(c *din.Container, server *rpc.Server) error {
	messenger, err := din.GetT[*lodgechat.Messenger](c)
	if err != nil {
		return err
	}

	svc := &MessagingService{
		messenger: messenger,
	}
	return errors.Wrapf(server.RegisterService(svc, MessagingServiceName), "failed to register jsonrpc service")
}
