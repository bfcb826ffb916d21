package thread

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jcooky/go-din"
	"github.com/mitchellh/mapstructure"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/db"
	"github.com/habiliai/lodgechat/internal/mylog"
)

type (
	Manager interface {
		FindOrCreateDirect(ctx context.Context, userA, userB string) (*entity.Thread, error)
		CreateComplaintCase(ctx context.Context, raiser, assignee, subject, description string, opts ...CaseOption) (*entity.Thread, error)
		CreateGroup(ctx context.Context, creator, subject string, members []string) (*entity.Thread, error)
		AddParticipant(ctx context.Context, threadId uint, actor, userId string) error
		ListForUser(ctx context.Context, userId string, kind *entity.ThreadKind) ([]entity.Thread, error)
		UpdateCaseStatus(ctx context.Context, threadId uint, actor string, status entity.CaseStatus) (*entity.Thread, error)
		ReassignCase(ctx context.Context, threadId uint, actor, assignee string) (*entity.Thread, error)
		GetThread(ctx context.Context, threadId uint) (*entity.Thread, error)
		RequireParticipant(ctx context.Context, threadId uint, userId string) error
		Participants(ctx context.Context, threadId uint) ([]entity.Participant, error)
	}

	CaseOption func(meta map[string]any)

	// CaseContext ties a complaint case to the lodging it is about.
	CaseContext struct {
		PropertyID string `mapstructure:"property_id" json:"property_id,omitempty"`
		UnitID     string `mapstructure:"unit_id" json:"unit_id,omitempty"`
		Category   string `mapstructure:"category" json:"category,omitempty"`
	}

	manager struct {
		logger *mylog.Logger
		db     *gorm.DB
	}
)

var (
	_ Manager = (*manager)(nil)
)

func NewManager(logger *mylog.Logger, db *gorm.DB) Manager {
	return &manager{
		logger: logger,
		db:     db,
	}
}

func WithCaseContext(caseCtx CaseContext) CaseOption {
	return func(meta map[string]any) {
		if caseCtx.PropertyID != "" {
			meta["property_id"] = caseCtx.PropertyID
		}
		if caseCtx.UnitID != "" {
			meta["unit_id"] = caseCtx.UnitID
		}
		if caseCtx.Category != "" {
			meta["category"] = caseCtx.Category
		}
	}
}

func CaseContextOf(thread *entity.Thread) (CaseContext, error) {
	var caseCtx CaseContext
	if err := mapstructure.Decode(thread.Metadata.Data(), &caseCtx); err != nil {
		return caseCtx, errors.Wrapf(err, "failed to decode case context of thread %d", thread.ID)
	}
	return caseCtx, nil
}

func (s *manager) FindOrCreateDirect(ctx context.Context, userA, userB string) (*entity.Thread, error) {
	userA, userB = strings.TrimSpace(userA), strings.TrimSpace(userB)
	if userA == "" || userB == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "both users are required")
	}
	if userA == userB {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "direct thread needs two distinct users")
	}

	key := entity.DirectKeyOf(userA, userB)

	var thread entity.Thread
	if err := db.Transaction(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		candidate := entity.Thread{
			Kind:      entity.ThreadKindDirect,
			CreatedBy: userA,
			DirectKey: &key,
		}
		r := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "direct_key"}},
			DoNothing: true,
		}).Create(&candidate)
		if r.Error != nil {
			return errors.Wrapf(r.Error, "failed to create direct thread")
		}

		if r.RowsAffected == 1 {
			participants := []entity.Participant{
				{ThreadID: candidate.ID, UserID: userA, Role: entity.ParticipantRoleMember},
				{ThreadID: candidate.ID, UserID: userB, Role: entity.ParticipantRoleMember},
			}
			if err := tx.Create(&participants).Error; err != nil {
				return errors.Wrapf(err, "failed to add direct participants")
			}
			candidate.Participants = participants
			thread = candidate
			s.logger.Debug("direct thread created", "thread_id", candidate.ID, "key", key)
			return nil
		}

		// the other party won the insert
		r = tx.Preload("Participants").Where("direct_key = ?", key).Limit(1).Find(&thread)
		if r.Error != nil {
			return errors.Wrapf(r.Error, "failed to find direct thread")
		} else if r.RowsAffected == 0 {
			return errors.Wrapf(errors.ErrConflictRetryable, "direct thread %s not visible yet", key)
		}
		if !thread.IsDirectBetween(userA, userB) {
			return errors.Wrapf(errors.ErrInvalidState, "direct thread %d does not belong to %s and %s", thread.ID, userA, userB)
		}
		return nil
	}); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.Wrapf(errors.ErrConflictRetryable, "direct thread %s: %v", key, err)
		}
		return nil, err
	}

	return &thread, nil
}

func (s *manager) CreateComplaintCase(
	ctx context.Context,
	raiser, assignee, subject, description string,
	opts ...CaseOption,
) (*entity.Thread, error) {
	raiser, assignee = strings.TrimSpace(raiser), strings.TrimSpace(assignee)
	if raiser == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "raiser is required")
	}
	if strings.TrimSpace(subject) == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "subject is required")
	}
	if raiser == assignee {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "raiser cannot be the assignee")
	}

	meta := map[string]any{}
	for _, opt := range opts {
		opt(meta)
	}

	status := entity.CaseStatusOpen
	thread := entity.Thread{
		Kind:        entity.ThreadKindComplaintCase,
		Subject:     &subject,
		CreatedBy:   raiser,
		Description: description,
		Status:      &status,
		RaiserID:    raiser,
		AssigneeID:  assignee,
		Metadata:    datatypes.NewJSONType(meta),
	}

	if err := db.Transaction(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		if err := tx.Create(&thread).Error; err != nil {
			return errors.Wrapf(err, "failed to create complaint case")
		}

		thread.Participants = []entity.Participant{
			{ThreadID: thread.ID, UserID: raiser, Role: entity.ParticipantRoleRaiser},
		}
		if assignee != "" {
			thread.Participants = append(thread.Participants, entity.Participant{
				ThreadID: thread.ID, UserID: assignee, Role: entity.ParticipantRoleAssignee,
			})
		}
		if err := tx.Create(&thread.Participants).Error; err != nil {
			return errors.Wrapf(err, "failed to add case participants")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.Info("complaint case created", "thread_id", thread.ID, "raiser", raiser, "assignee", assignee)

	return &thread, nil
}

func (s *manager) CreateGroup(ctx context.Context, creator, subject string, members []string) (*entity.Thread, error) {
	creator = strings.TrimSpace(creator)
	if creator == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "creator is required")
	}

	thread := entity.Thread{
		Kind:      entity.ThreadKindGroup,
		Subject:   &subject,
		CreatedBy: creator,
	}

	if err := db.Transaction(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		if err := tx.Create(&thread).Error; err != nil {
			return errors.Wrapf(err, "failed to create group thread")
		}

		seen := map[string]bool{}
		for _, userId := range append([]string{creator}, members...) {
			userId = strings.TrimSpace(userId)
			if userId == "" || seen[userId] {
				continue
			}
			seen[userId] = true
			thread.Participants = append(thread.Participants, entity.Participant{
				ThreadID: thread.ID, UserID: userId, Role: entity.ParticipantRoleMember,
			})
		}
		if err := tx.Create(&thread.Participants).Error; err != nil {
			return errors.Wrapf(err, "failed to add group participants")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return &thread, nil
}

func (s *manager) AddParticipant(ctx context.Context, threadId uint, actor, userId string) error {
	if strings.TrimSpace(userId) == "" {
		return errors.Wrapf(errors.ErrInvalidParams, "user is required")
	}

	return db.Transaction(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		thread, err := s.GetThread(ctx, threadId)
		if err != nil {
			return err
		}
		if thread.Kind == entity.ThreadKindDirect {
			return errors.Wrapf(errors.ErrInvalidState, "participants of direct thread %d are fixed", threadId)
		}
		if err := s.RequireParticipant(ctx, threadId, actor); err != nil {
			return err
		}

		participant := entity.Participant{ThreadID: threadId, UserID: userId, Role: entity.ParticipantRoleMember}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&participant).Error; err != nil {
			return errors.Wrapf(err, "failed to add participant")
		}
		return nil
	})
}

func (s *manager) ListForUser(ctx context.Context, userId string, kind *entity.ThreadKind) ([]entity.Thread, error) {
	_, tx := db.OpenSession(ctx, s.db)

	stmt := tx.Model(&entity.Thread{}).
		Joins("JOIN participants ON participants.thread_id = threads.id AND participants.user_id = ?", userId).
		Preload("Participants")
	if kind != nil {
		if !kind.Valid() {
			return nil, errors.Wrapf(errors.ErrInvalidParams, "unknown thread kind %q", *kind)
		}
		stmt = stmt.Where("threads.kind = ?", *kind)
	}

	var threads []entity.Thread
	if err := stmt.
		Order("COALESCE(threads.last_message_at, threads.created_at) DESC").
		Order("threads.id DESC").
		Find(&threads).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to list threads of %s", userId)
	}

	return threads, nil
}

func (s *manager) UpdateCaseStatus(ctx context.Context, threadId uint, actor string, status entity.CaseStatus) (*entity.Thread, error) {
	var thread *entity.Thread
	if err := db.Transaction(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var err error
		thread, err = s.lockCase(ctx, tx, threadId, actor)
		if err != nil {
			return err
		}

		if !thread.Status.CanTransitionTo(status) {
			return errors.Wrapf(errors.ErrInvalidTransition, "%s -> %s", *thread.Status, status)
		}

		if err := tx.Model(thread).Update("status", status).Error; err != nil {
			return errors.Wrapf(err, "failed to update case status")
		}
		thread.Status = &status
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.Info("case status changed", "thread_id", threadId, "status", status, "actor", actor)

	return thread, nil
}

func (s *manager) ReassignCase(ctx context.Context, threadId uint, actor, assignee string) (*entity.Thread, error) {
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "assignee cannot be cleared")
	}

	var thread *entity.Thread
	if err := db.Transaction(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var err error
		thread, err = s.lockCase(ctx, tx, threadId, actor)
		if err != nil {
			return err
		}
		if assignee == thread.RaiserID {
			return errors.Wrapf(errors.ErrInvalidParams, "raiser cannot be the assignee")
		}
		if assignee == thread.AssigneeID {
			return nil
		}

		if thread.AssigneeID != "" {
			if err := tx.Model(&entity.Participant{}).
				Where("thread_id = ? AND user_id = ?", threadId, thread.AssigneeID).
				Update("role", entity.ParticipantRoleMember).Error; err != nil {
				return errors.Wrapf(err, "failed to demote previous assignee")
			}
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "thread_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{"role": entity.ParticipantRoleAssignee}),
		}).Create(&entity.Participant{
			ThreadID: threadId,
			UserID:   assignee,
			Role:     entity.ParticipantRoleAssignee,
		}).Error; err != nil {
			return errors.Wrapf(err, "failed to add assignee")
		}

		if err := tx.Model(thread).Update("assignee_id", assignee).Error; err != nil {
			return errors.Wrapf(err, "failed to reassign case")
		}
		thread.AssigneeID = assignee
		return nil
	}); err != nil {
		return nil, err
	}

	return s.GetThread(ctx, threadId)
}

func (s *manager) lockCase(ctx context.Context, tx *gorm.DB, threadId uint, actor string) (*entity.Thread, error) {
	var thread entity.Thread
	if r := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Limit(1).Find(&thread, threadId); r.Error != nil {
		return nil, errors.Wrapf(r.Error, "failed to find thread")
	} else if r.RowsAffected == 0 {
		return nil, errors.Wrapf(errors.ErrThreadNotFound, "thread %d", threadId)
	}
	if thread.Kind != entity.ThreadKindComplaintCase || thread.Status == nil {
		return nil, errors.Wrapf(errors.ErrInvalidState, "thread %d is not a complaint case", threadId)
	}
	if err := s.RequireParticipant(ctx, threadId, actor); err != nil {
		return nil, err
	}
	return &thread, nil
}

func (s *manager) GetThread(ctx context.Context, threadId uint) (*entity.Thread, error) {
	_, tx := db.OpenSession(ctx, s.db)

	var thread entity.Thread
	if r := tx.Preload("Participants").Limit(1).Find(&thread, threadId); r.Error != nil {
		return nil, errors.Wrapf(r.Error, "failed to find thread")
	} else if r.RowsAffected == 0 {
		return nil, errors.Wrapf(errors.ErrThreadNotFound, "thread %d", threadId)
	}

	return &thread, nil
}

func (s *manager) RequireParticipant(ctx context.Context, threadId uint, userId string) error {
	_, tx := db.OpenSession(ctx, s.db)

	var count int64
	if err := tx.Model(&entity.Participant{}).
		Where("thread_id = ? AND user_id = ?", threadId, userId).
		Count(&count).Error; err != nil {
		return errors.Wrapf(err, "failed to check participant")
	}
	if count == 0 {
		return errors.Wrapf(errors.ErrNotParticipant, "user %s in thread %d", userId, threadId)
	}

	return nil
}

func (s *manager) Participants(ctx context.Context, threadId uint) ([]entity.Participant, error) {
	_, tx := db.OpenSession(ctx, s.db)

	var participants []entity.Participant
	if err := tx.Where("thread_id = ?", threadId).Order("joined_at ASC").Find(&participants).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to find participants")
	}

	return participants, nil
}

func init() {
	din.RegisterT(func(c *din.Container) (Manager, error) {
		logger, err := din.Get[*slog.Logger](c, mylog.Key)
		if err != nil {
			return nil, err
		}

		return NewManager(logger, din.MustGet[*gorm.DB](c, db.Key)), nil
	})
}
