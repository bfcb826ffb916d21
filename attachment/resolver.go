package attachment

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/db"
	"github.com/habiliai/lodgechat/internal/mylog"
	"github.com/habiliai/lodgechat/internal/stringutils"
)

const (
	genericContentType = "application/octet-stream"
)

type (
	Resolver interface {
		// Upload stores the bytes first and records the attachment only when storage succeeded.
		Upload(ctx context.Context, ownerUserId, fileName, contentType string, data []byte) (*entity.Attachment, error)
		Resolve(ctx context.Context, attachmentId uint) (*Resolved, error)
		// ResolveFor resolves only for the uploader or a participant of a thread the attachment was posted to.
		ResolveFor(ctx context.Context, userId string, attachmentId uint) (*Resolved, error)
	}

	Resolved struct {
		ID          uint   `json:"id"`
		URL         string `json:"url"`
		DisplayName string `json:"display_name"`
		ContentType string `json:"content_type"`
		ByteSize    int64  `json:"byte_size"`
	}

	resolver struct {
		logger   *slog.Logger
		db       *gorm.DB
		storage  Storage
		maxBytes int64
	}
)

var (
	_ Resolver = (*resolver)(nil)
)

func NewResolver(logger *slog.Logger, db *gorm.DB, storage Storage, maxBytes int64) Resolver {
	return &resolver{
		logger:   logger,
		db:       db,
		storage:  storage,
		maxBytes: maxBytes,
	}
}

func (r *resolver) Upload(ctx context.Context, ownerUserId, fileName, contentType string, data []byte) (*entity.Attachment, error) {
	if ownerUserId == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "owner is required")
	}
	if len(data) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "attachment is empty")
	}
	if r.maxBytes > 0 && int64(len(data)) > r.maxBytes {
		return nil, errors.Wrapf(
			errors.ErrInvalidParams,
			"attachment is %s, the limit is %s",
			humanize.IBytes(uint64(len(data))),
			humanize.IBytes(uint64(r.maxBytes)),
		)
	}

	displayName := filepath.Base(strings.ReplaceAll(stringutils.SanitizeFileName(fileName), "\\", "/"))
	if displayName == "." || displayName == "/" {
		displayName = ""
	}

	detected := mimetype.Detect(data)
	if contentType == "" || strings.HasPrefix(contentType, genericContentType) {
		contentType = detected.String()
	}

	ext := strings.ToLower(filepath.Ext(displayName))
	if ext == "" {
		ext = detected.Extension()
	}
	if displayName == "" {
		displayName = "attachment" + ext
	}

	key := ownerUserId + "/" + uuid.NewString() + ext
	ref, err := r.storage.Put(ctx, key, data, contentType)
	if err != nil {
		r.logger.Warn("attachment upload failed", "owner", ownerUserId, "key", key, mylog.Err(err))
		return nil, errors.Wrapf(errors.ErrUploadFailed, "%v", err)
	}

	attachment := entity.Attachment{
		OwnerUserID: ownerUserId,
		StorageKey:  key,
		DisplayName: displayName,
		ContentType: contentType,
		ByteSize:    int64(len(data)),
		PublicRef:   ref,
	}

	_, tx := db.OpenSession(ctx, r.db)
	if err := tx.Create(&attachment).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to record attachment")
	}

	r.logger.Debug("attachment uploaded", "id", attachment.ID, "owner", ownerUserId, "size", humanize.IBytes(uint64(len(data))))
	return &attachment, nil
}

func (r *resolver) Resolve(ctx context.Context, attachmentId uint) (*Resolved, error) {
	attachment, err := r.find(ctx, attachmentId)
	if err != nil {
		return nil, err
	}

	return r.resolve(ctx, attachment)
}

func (r *resolver) ResolveFor(ctx context.Context, userId string, attachmentId uint) (*Resolved, error) {
	attachment, err := r.find(ctx, attachmentId)
	if err != nil {
		return nil, err
	}

	if attachment.OwnerUserID != userId {
		_, tx := db.OpenSession(ctx, r.db)

		var visible int64
		if err := tx.Model(&entity.Message{}).
			Joins("JOIN participants ON participants.thread_id = messages.thread_id").
			Where("messages.attachment_id = ? AND participants.user_id = ?", attachmentId, userId).
			Count(&visible).Error; err != nil {
			return nil, errors.Wrapf(err, "failed to check attachment visibility")
		}
		if visible == 0 {
			return nil, errors.Wrapf(errors.ErrNotParticipant, "attachment %d is not shared with %s", attachmentId, userId)
		}
	}

	return r.resolve(ctx, attachment)
}

func (r *resolver) find(ctx context.Context, attachmentId uint) (*entity.Attachment, error) {
	_, tx := db.OpenSession(ctx, r.db)

	var attachment entity.Attachment
	if res := tx.Limit(1).Find(&attachment, attachmentId); res.Error != nil {
		return nil, errors.Wrapf(res.Error, "failed to find attachment")
	} else if res.RowsAffected == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "attachment %d", attachmentId)
	}

	return &attachment, nil
}

func (r *resolver) resolve(ctx context.Context, attachment *entity.Attachment) (*Resolved, error) {
	url, err := r.storage.URL(ctx, attachment.PublicRef)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDependencyFailure, "failed to resolve url of attachment %d: %v", attachment.ID, err)
	}

	return &Resolved{
		ID:          attachment.ID,
		URL:         url,
		DisplayName: attachment.DisplayName,
		ContentType: attachment.ContentType,
		ByteSize:    attachment.ByteSize,
	}, nil
}
