package thread_test

import (
	"sync"
	"testing"
	"time"

	"github.com/jcooky/go-din"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/mytesting"
	"github.com/habiliai/lodgechat/thread"
)

type ThreadManagerTestSuite struct {
	mytesting.Suite

	threadManager thread.Manager
}

func (s *ThreadManagerTestSuite) SetupTest() {
	s.Suite.SetupTest()

	s.threadManager = din.MustGetT[thread.Manager](s.Container)
}

func (s *ThreadManagerTestSuite) TestFindOrCreateDirectReturnsSameThreadForEitherOrder() {
	first, err := s.threadManager.FindOrCreateDirect(s, "tenant-a", "owner-b")
	s.Require().NoError(err)
	s.Equal(entity.ThreadKindDirect, first.Kind)
	s.Nil(first.Subject)
	s.ElementsMatch([]string{"tenant-a", "owner-b"}, first.ParticipantIDs())

	second, err := s.threadManager.FindOrCreateDirect(s, "owner-b", "tenant-a")
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
	s.Len(second.Participants, 2)
}

func (s *ThreadManagerTestSuite) TestFindOrCreateDirectConcurrentCallersConverge() {
	const rounds = 8

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[uint]int{}
	)
	for i := 0; i < rounds; i++ {
		for _, pair := range [][2]string{{"A", "B"}, {"B", "A"}} {
			wg.Add(1)
			go func(a, b string) {
				defer wg.Done()
				thr, err := s.threadManager.FindOrCreateDirect(s, a, b)
				if errors.Is(err, errors.ErrConflictRetryable) {
					thr, err = s.threadManager.FindOrCreateDirect(s, a, b)
				}
				s.NoError(err)
				if thr == nil {
					return
				}
				mu.Lock()
				ids[thr.ID]++
				mu.Unlock()
			}(pair[0], pair[1])
		}
	}
	wg.Wait()

	s.Len(ids, 1)

	var count int64
	s.Require().NoError(s.DB.Model(&entity.Thread{}).
		Where("kind = ? AND direct_key = ?", entity.ThreadKindDirect, entity.DirectKeyOf("A", "B")).
		Count(&count).Error)
	s.Equal(int64(1), count)

	var participants int64
	s.Require().NoError(s.DB.Model(&entity.Participant{}).Count(&participants).Error)
	s.Equal(int64(2), participants)
}

func (s *ThreadManagerTestSuite) TestFindOrCreateDirectKeepsSeparatorIdsApart() {
	first, err := s.threadManager.FindOrCreateDirect(s, "a|b", "c")
	s.Require().NoError(err)
	second, err := s.threadManager.FindOrCreateDirect(s, "a", "b|c")
	s.Require().NoError(err)

	s.NotEqual(first.ID, second.ID)
	s.ElementsMatch([]string{"a|b", "c"}, first.ParticipantIDs())
	s.ElementsMatch([]string{"a", "b|c"}, second.ParticipantIDs())
	s.NoError(s.threadManager.RequireParticipant(s, second.ID, "a"))
	s.ErrorIs(s.threadManager.RequireParticipant(s, first.ID, "a"), errors.ErrNotParticipant)
}

func (s *ThreadManagerTestSuite) TestFindOrCreateDirectRefusesForeignThreadUnderKey() {
	key := entity.DirectKeyOf("A", "B")
	squatter := entity.Thread{Kind: entity.ThreadKindDirect, CreatedBy: "A", DirectKey: &key}
	s.Require().NoError(s.DB.Create(&squatter).Error)
	s.Require().NoError(s.DB.Create(&[]entity.Participant{
		{ThreadID: squatter.ID, UserID: "A", Role: entity.ParticipantRoleMember},
		{ThreadID: squatter.ID, UserID: "M", Role: entity.ParticipantRoleMember},
	}).Error)

	_, err := s.threadManager.FindOrCreateDirect(s, "B", "A")
	s.ErrorIs(err, errors.ErrInvalidState)
}

func (s *ThreadManagerTestSuite) TestFindOrCreateDirectRejectsSelfAndBlank() {
	_, err := s.threadManager.FindOrCreateDirect(s, "A", "A")
	s.ErrorIs(err, errors.ErrInvalidParams)

	_, err = s.threadManager.FindOrCreateDirect(s, "", "A")
	s.ErrorIs(err, errors.ErrInvalidParams)
}

func (s *ThreadManagerTestSuite) TestComplaintCaseStatusLifecycle() {
	thr, err := s.threadManager.CreateComplaintCase(s, "tenant-1", "staff-1", "Leaking sink", "Water under the sink",
		thread.WithCaseContext(thread.CaseContext{PropertyID: "prop-9", UnitID: "4B", Category: "plumbing"}))
	s.Require().NoError(err)
	s.Require().NotNil(thr.Status)
	s.Equal(entity.CaseStatusOpen, *thr.Status)
	s.Equal("tenant-1", thr.RaiserID)
	s.Equal("staff-1", thr.AssigneeID)

	caseCtx, err := thread.CaseContextOf(thr)
	s.Require().NoError(err)
	s.Equal("4B", caseCtx.UnitID)
	s.Equal("plumbing", caseCtx.Category)

	thr, err = s.threadManager.UpdateCaseStatus(s, thr.ID, "staff-1", entity.CaseStatusResolved)
	s.Require().NoError(err)
	s.Equal(entity.CaseStatusResolved, *thr.Status)

	_, err = s.threadManager.UpdateCaseStatus(s, thr.ID, "staff-1", entity.CaseStatusOpen)
	s.ErrorIs(err, errors.ErrInvalidTransition)
	s.ErrorIs(err, errors.ErrInvalidState)

	thr, err = s.threadManager.UpdateCaseStatus(s, thr.ID, "tenant-1", entity.CaseStatusInProgress)
	s.Require().NoError(err)
	s.Equal(entity.CaseStatusInProgress, *thr.Status)

	stored, err := s.threadManager.GetThread(s, thr.ID)
	s.Require().NoError(err)
	s.Equal(entity.CaseStatusInProgress, *stored.Status)
}

func (s *ThreadManagerTestSuite) TestComplaintCasesAreNeverDeduplicated() {
	first, err := s.threadManager.CreateComplaintCase(s, "tenant-1", "staff-1", "Noise", "")
	s.Require().NoError(err)
	second, err := s.threadManager.CreateComplaintCase(s, "tenant-1", "staff-1", "Noise", "")
	s.Require().NoError(err)
	s.NotEqual(first.ID, second.ID)
}

func (s *ThreadManagerTestSuite) TestUpdateCaseStatusFailures() {
	direct, err := s.threadManager.FindOrCreateDirect(s, "A", "B")
	s.Require().NoError(err)
	_, err = s.threadManager.UpdateCaseStatus(s, direct.ID, "A", entity.CaseStatusResolved)
	s.ErrorIs(err, errors.ErrInvalidState)

	_, err = s.threadManager.UpdateCaseStatus(s, 9999, "A", entity.CaseStatusResolved)
	s.ErrorIs(err, errors.ErrNotFound)

	thr, err := s.threadManager.CreateComplaintCase(s, "tenant-1", "", "Broken heater", "")
	s.Require().NoError(err)
	_, err = s.threadManager.UpdateCaseStatus(s, thr.ID, "stranger", entity.CaseStatusInProgress)
	s.ErrorIs(err, errors.ErrNotParticipant)
	s.ErrorIs(err, errors.ErrPermissionDenied)
}

func (s *ThreadManagerTestSuite) TestReassignCaseKeepsSingleAssignee() {
	thr, err := s.threadManager.CreateComplaintCase(s, "tenant-1", "staff-1", "Mold", "")
	s.Require().NoError(err)

	thr, err = s.threadManager.ReassignCase(s, thr.ID, "staff-1", "staff-2")
	s.Require().NoError(err)
	s.Equal("staff-2", thr.AssigneeID)

	roles := map[string]entity.ParticipantRole{}
	for _, p := range thr.Participants {
		roles[p.UserID] = p.Role
	}
	s.Equal(entity.ParticipantRoleRaiser, roles["tenant-1"])
	s.Equal(entity.ParticipantRoleMember, roles["staff-1"])
	s.Equal(entity.ParticipantRoleAssignee, roles["staff-2"])

	_, err = s.threadManager.ReassignCase(s, thr.ID, "staff-2", "")
	s.ErrorIs(err, errors.ErrInvalidParams)
}

func (s *ThreadManagerTestSuite) TestGroupParticipantsAreAppendOnly() {
	group, err := s.threadManager.CreateGroup(s, "admin-1", "Building 7", []string{"owner-1", "owner-1", "staff-3"})
	s.Require().NoError(err)
	s.ElementsMatch([]string{"admin-1", "owner-1", "staff-3"}, group.ParticipantIDs())

	s.Require().NoError(s.threadManager.AddParticipant(s, group.ID, "owner-1", "tenant-5"))
	s.Require().NoError(s.threadManager.AddParticipant(s, group.ID, "owner-1", "tenant-5"))

	participants, err := s.threadManager.Participants(s, group.ID)
	s.Require().NoError(err)
	s.Len(participants, 4)

	s.ErrorIs(s.threadManager.AddParticipant(s, group.ID, "stranger", "tenant-6"), errors.ErrNotParticipant)

	direct, err := s.threadManager.FindOrCreateDirect(s, "A", "B")
	s.Require().NoError(err)
	s.ErrorIs(s.threadManager.AddParticipant(s, direct.ID, "A", "C"), errors.ErrInvalidState)
}

func (s *ThreadManagerTestSuite) TestListForUserOrdersByActivity() {
	older, err := s.threadManager.FindOrCreateDirect(s, "me", "peer-1")
	s.Require().NoError(err)
	newer, err := s.threadManager.FindOrCreateDirect(s, "me", "peer-2")
	s.Require().NoError(err)
	complaint, err := s.threadManager.CreateComplaintCase(s, "me", "staff-1", "Parking", "")
	s.Require().NoError(err)
	_, err = s.threadManager.FindOrCreateDirect(s, "someone", "else")
	s.Require().NoError(err)

	base := time.Now().Add(-time.Hour)
	s.touch(older.ID, base.Add(3*time.Minute))
	s.touch(newer.ID, base.Add(2*time.Minute))
	s.touch(complaint.ID, base.Add(time.Minute))

	threads, err := s.threadManager.ListForUser(s, "me", nil)
	s.Require().NoError(err)
	s.Require().Len(threads, 3)
	s.Equal([]uint{older.ID, newer.ID, complaint.ID}, []uint{threads[0].ID, threads[1].ID, threads[2].ID})

	kind := entity.ThreadKindComplaintCase
	threads, err = s.threadManager.ListForUser(s, "me", &kind)
	s.Require().NoError(err)
	s.Require().Len(threads, 1)
	s.Equal(complaint.ID, threads[0].ID)

	bogus := entity.ThreadKind("broadcast")
	_, err = s.threadManager.ListForUser(s, "me", &bogus)
	s.ErrorIs(err, errors.ErrInvalidParams)
}

func (s *ThreadManagerTestSuite) touch(threadId uint, at time.Time) {
	s.Require().NoError(s.DB.Model(&entity.Thread{Model: gorm.Model{ID: threadId}}).Update("last_message_at", at).Error)
}

func TestThreadManager(t *testing.T) {
	suite.Run(t, new(ThreadManagerTestSuite))
}
