package lodgechat_test

import (
	"testing"
	"time"

	"github.com/jcooky/go-din"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/habiliai/lodgechat"
	"github.com/habiliai/lodgechat/attachment"
	attachmenttest "github.com/habiliai/lodgechat/attachment/test"
	"github.com/habiliai/lodgechat/directory"
	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/mylog"
	"github.com/habiliai/lodgechat/internal/mytesting"
)

type MessengerTestSuite struct {
	mytesting.Suite

	messenger *lodgechat.Messenger
	sessions  []*lodgechat.Session
}

func (s *MessengerTestSuite) SetupTest() {
	s.Suite.SetupTest()

	s.messenger = din.MustGetT[*lodgechat.Messenger](s.Container)

	for _, p := range []entity.Profile{
		{UserID: "A", Role: entity.RoleTenant, DisplayName: "Alice"},
		{UserID: "B", Role: entity.RoleOwner, DisplayName: "Bob"},
	} {
		s.Require().NoError(directory.UpsertProfile(s, s.DB, &p))
	}
}

func (s *MessengerTestSuite) TearDownTest() {
	for _, session := range s.sessions {
		session.Close()
	}
	s.sessions = nil

	s.Suite.TearDownTest()
}

func (s *MessengerTestSuite) session(userId string) *lodgechat.Session {
	session, err := s.messenger.NewSession(userId)
	s.Require().NoError(err)
	s.sessions = append(s.sessions, session)
	return session
}

func (s *MessengerTestSuite) waitUpdate(view *lodgechat.View) entity.Message {
	select {
	case msg := <-view.Updates():
		return msg
	case <-time.After(5 * time.Second):
		s.FailNow("no update delivered")
		return entity.Message{}
	}
}

func (s *MessengerTestSuite) TestFirstContactBetweenTwoUsers() {
	alice, bob := s.session("A"), s.session("B")

	t1, err := alice.OpenDirect(s, "B")
	s.Require().NoError(err)
	same, err := bob.OpenDirect(s, "A")
	s.Require().NoError(err)
	s.Equal(t1.ID, same.ID)

	alice.SetDraft("hello")
	sent, err := alice.Send(s, t1.ID)
	s.Require().NoError(err)
	s.Empty(alice.Draft())

	var listed []entity.Message
	for msg, err := range s.messenger.Messages().List(s, t1.ID, nil) {
		s.Require().NoError(err)
		listed = append(listed, msg)
	}
	s.Require().Len(listed, 1)
	s.Equal("A", listed[0].SenderID)
	s.Equal("hello", listed[0].Body)

	inbox, err := bob.Inbox(s, nil)
	s.Require().NoError(err)
	s.Require().Len(inbox, 1)
	s.True(inbox[0].Unread)
	s.Require().NotNil(inbox[0].LastMessage)
	s.Equal(sent.ID, inbox[0].LastMessage.ID)
	s.Require().Len(inbox[0].Counterparts, 1)
	s.Equal("Alice", inbox[0].Counterparts[0].DisplayName)

	view, err := bob.Open(s, t1.ID)
	s.Require().NoError(err)
	s.Require().Len(view.Messages(), 1)

	senders, err := view.Senders(s)
	s.Require().NoError(err)
	s.Equal(entity.RoleTenant, senders["A"].Role)

	inbox, err = bob.Inbox(s, nil)
	s.Require().NoError(err)
	s.False(inbox[0].Unread)
}

func (s *MessengerTestSuite) TestOpenViewFollowsLiveMessages() {
	alice, bob := s.session("A"), s.session("B")

	thr, err := alice.OpenDirect(s, "B")
	s.Require().NoError(err)
	alice.SetDraft("before open")
	_, err = alice.Send(s, thr.ID)
	s.Require().NoError(err)

	view, err := bob.Open(s, thr.ID)
	s.Require().NoError(err)
	again, err := bob.Open(s, thr.ID)
	s.Require().NoError(err)
	s.Same(view, again)

	for _, body := range []string{"one", "two", "three"} {
		alice.SetDraft(body)
		_, err := alice.Send(s, thr.ID)
		s.Require().NoError(err)
	}
	for _, body := range []string{"one", "two", "three"} {
		s.Equal(body, s.waitUpdate(view).Body)
	}

	messages := view.Messages()
	s.Require().Len(messages, 4)
	for i := 1; i < len(messages); i++ {
		s.True(messages[i-1].Before(&messages[i]))
	}

	// each delivery re-marks the open thread, so it never shows as unread
	s.Eventually(func() bool {
		inbox, err := bob.Inbox(s, nil)
		return err == nil && len(inbox) == 1 && !inbox[0].Unread
	}, 5*time.Second, 20*time.Millisecond)

	view.Close()
	s.True(view.Closed())
	s.Zero(s.messenger.Dispatcher().Subscribers(thr.ID))
}

func (s *MessengerTestSuite) TestSendWithAttachmentOnly() {
	alice := s.session("A")
	thr, err := alice.OpenDirect(s, "B")
	s.Require().NoError(err)

	alice.StageAttachment("meter.txt", "text/plain", []byte("reading 4711"))
	msg, err := alice.Send(s, thr.ID)
	s.Require().NoError(err)
	s.Empty(msg.Body)
	s.Require().NotNil(msg.AttachmentID)
	s.Nil(alice.Staged())

	resolved, err := s.messenger.Attachments().Resolve(s, *msg.AttachmentID)
	s.Require().NoError(err)
	s.Equal("meter.txt", resolved.DisplayName)

	_, err = alice.Send(s, thr.ID)
	s.ErrorIs(err, errors.ErrEmptyMessage)
}

func (s *MessengerTestSuite) TestFailedUploadPostsNothing() {
	storage := &attachmenttest.StorageMock{}
	storage.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("storage offline"))

	logger := din.MustGet[*mylog.Logger](s.Container, mylog.Key)
	messenger, err := lodgechat.NewMessenger(
		lodgechat.WithLogger(logger),
		lodgechat.WithThreadManager(s.messenger.Threads()),
		lodgechat.WithMessageLog(s.messenger.Messages()),
		lodgechat.WithTracker(s.messenger.Tracker()),
		lodgechat.WithDispatcher(s.messenger.Dispatcher()),
		lodgechat.WithAttachments(attachment.NewResolver(logger, s.DB, storage, 0)),
		lodgechat.WithIdentity(directory.NewDBIdentity(s.DB)),
	)
	s.Require().NoError(err)

	alice, err := messenger.NewSession("A")
	s.Require().NoError(err)
	defer alice.Close()

	thr, err := alice.OpenDirect(s, "B")
	s.Require().NoError(err)

	alice.SetDraft("see photo")
	alice.StageAttachment("leak.jpg", "image/jpeg", []byte("jpeg"))
	_, err = alice.Send(s, thr.ID)
	s.ErrorIs(err, errors.ErrUploadFailed)

	count, err := messenger.Messages().Count(s, thr.ID)
	s.Require().NoError(err)
	s.Zero(count)
	s.Equal("see photo", alice.Draft())
	s.NotNil(alice.Staged())
}

func (s *MessengerTestSuite) TestOutsidersCannotOpenOrSend() {
	alice, mallory := s.session("A"), s.session("M")
	thr, err := alice.OpenDirect(s, "B")
	s.Require().NoError(err)

	_, err = mallory.Open(s, thr.ID)
	s.ErrorIs(err, errors.ErrNotParticipant)

	mallory.SetDraft("hi")
	mallory.StageAttachment("x.txt", "text/plain", []byte("x"))
	_, err = mallory.Send(s, thr.ID)
	s.ErrorIs(err, errors.ErrNotParticipant)

	var attachments int64
	s.Require().NoError(s.DB.Model(&entity.Attachment{}).Count(&attachments).Error)
	s.Zero(attachments)

	_, err = s.messenger.NewSession("")
	s.ErrorIs(err, errors.ErrInvalidParams)
}

func TestMessenger(t *testing.T) {
	suite.Run(t, new(MessengerTestSuite))
}
