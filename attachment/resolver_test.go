package attachment_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jcooky/go-din"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/habiliai/lodgechat/attachment"
	attachmenttest "github.com/habiliai/lodgechat/attachment/test"
	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/mylog"
	"github.com/habiliai/lodgechat/internal/mytesting"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type ResolverTestSuite struct {
	mytesting.Suite

	resolver attachment.Resolver
	storage  *attachment.PebbleStorage
}

func (s *ResolverTestSuite) SetupTest() {
	s.Suite.SetupTest()

	s.resolver = din.MustGetT[attachment.Resolver](s.Container)
	s.storage = din.MustGetT[*attachment.PebbleStorage](s.Container)
}

func (s *ResolverTestSuite) TestUploadThenResolve() {
	uploaded, err := s.resolver.Upload(s, "tenant-1", "lease.txt", "text/plain", []byte("signed lease"))
	s.Require().NoError(err)
	s.Equal("tenant-1", uploaded.OwnerUserID)
	s.Equal("lease.txt", uploaded.DisplayName)
	s.Equal(int64(len("signed lease")), uploaded.ByteSize)
	s.True(strings.HasPrefix(uploaded.StorageKey, "tenant-1/"))
	s.True(strings.HasSuffix(uploaded.StorageKey, ".txt"))

	resolved, err := s.resolver.Resolve(s, uploaded.ID)
	s.Require().NoError(err)
	s.Equal("lease.txt", resolved.DisplayName)
	s.Equal("text/plain", resolved.ContentType)
	s.Contains(resolved.URL, "/files/tenant-1/")

	server := httptest.NewServer(http.StripPrefix("/files/", s.storage))
	defer server.Close()

	path := resolved.URL[strings.Index(resolved.URL, "/files/"):]
	resp, err := http.Get(server.URL + path)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("text/plain", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Equal("signed lease", string(body))

	missing, err := http.Get(server.URL + "/files/tenant-1/nope.txt")
	s.Require().NoError(err)
	missing.Body.Close()
	s.Equal(http.StatusNotFound, missing.StatusCode)
}

func (s *ResolverTestSuite) TestUploadSniffsGenericContentType() {
	uploaded, err := s.resolver.Upload(s, "owner-1", "", "application/octet-stream", pngHeader)
	s.Require().NoError(err)
	s.Equal("image/png", uploaded.ContentType)
	s.Equal("attachment.png", uploaded.DisplayName)
	s.True(strings.HasSuffix(uploaded.StorageKey, ".png"))
}

func (s *ResolverTestSuite) TestUploadValidatesInput() {
	_, err := s.resolver.Upload(s, "", "a.txt", "text/plain", []byte("x"))
	s.ErrorIs(err, errors.ErrInvalidParams)

	_, err = s.resolver.Upload(s, "owner-1", "a.txt", "text/plain", nil)
	s.ErrorIs(err, errors.ErrInvalidParams)

	small := attachment.NewResolver(din.MustGet[*mylog.Logger](s.Container, mylog.Key), s.DB, s.storage, 4)
	_, err = small.Upload(s, "owner-1", "a.txt", "text/plain", []byte("too large"))
	s.ErrorIs(err, errors.ErrInvalidParams)
	s.Contains(err.Error(), "9 B")

	_, err = s.resolver.Resolve(s, 9999)
	s.ErrorIs(err, errors.ErrNotFound)
}

func (s *ResolverTestSuite) TestResolveForLimitsToUploaderAndParticipants() {
	uploaded, err := s.resolver.Upload(s, "tenant-1", "lease.pdf", "application/pdf", []byte("%PDF-1.4"))
	s.Require().NoError(err)

	_, err = s.resolver.ResolveFor(s, "owner-1", uploaded.ID)
	s.ErrorIs(err, errors.ErrNotParticipant, "not posted anywhere yet")

	resolved, err := s.resolver.ResolveFor(s, "tenant-1", uploaded.ID)
	s.Require().NoError(err)
	s.Equal("lease.pdf", resolved.DisplayName)

	thr := entity.Thread{Kind: entity.ThreadKindGroup, CreatedBy: "tenant-1"}
	s.Require().NoError(s.DB.Create(&thr).Error)
	s.Require().NoError(s.DB.Create(&[]entity.Participant{
		{ThreadID: thr.ID, UserID: "tenant-1"},
		{ThreadID: thr.ID, UserID: "owner-1"},
	}).Error)
	s.Require().NoError(s.DB.Create(&entity.Message{
		ThreadID:     thr.ID,
		Seq:          1,
		SenderID:     "tenant-1",
		AttachmentID: &uploaded.ID,
	}).Error)

	resolved, err = s.resolver.ResolveFor(s, "owner-1", uploaded.ID)
	s.Require().NoError(err)
	s.Contains(resolved.URL, "/files/tenant-1/")

	_, err = s.resolver.ResolveFor(s, "mallory", uploaded.ID)
	s.ErrorIs(err, errors.ErrNotParticipant)
	s.ErrorIs(err, errors.ErrPermissionDenied)

	_, err = s.resolver.ResolveFor(s, "mallory", 9999)
	s.ErrorIs(err, errors.ErrNotFound)
}

func (s *ResolverTestSuite) TestStorageFailureRecordsNothing() {
	storage := &attachmenttest.StorageMock{}
	storage.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("bucket unavailable"))

	failing := attachment.NewResolver(din.MustGet[*mylog.Logger](s.Container, mylog.Key), s.DB, storage, 0)
	_, err := failing.Upload(s, "tenant-1", "photo.jpg", "image/jpeg", []byte("jpeg"))
	s.ErrorIs(err, errors.ErrUploadFailed)
	s.ErrorIs(err, errors.ErrDependencyFailure)

	var count int64
	s.Require().NoError(s.DB.Model(&entity.Attachment{}).Count(&count).Error)
	s.Zero(count)
	storage.AssertExpectations(s.T())
}

func TestResolver(t *testing.T) {
	suite.Run(t, new(ResolverTestSuite))
}
