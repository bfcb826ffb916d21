package jsonrpc

import (
	"time"

	"github.com/mokiat/gog"

	"github.com/habiliai/lodgechat"
	"github.com/habiliai/lodgechat/attachment"
	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/thread"
)

type (
	Participant struct {
		UserID   string    `json:"user_id"`
		Role     string    `json:"role"`
		JoinedAt time.Time `json:"joined_at"`
	}

	Thread struct {
		ID            uint                `json:"id"`
		Kind          string              `json:"kind"`
		Subject       *string             `json:"subject"`
		CreatedBy     string              `json:"created_by"`
		CreatedAt     time.Time           `json:"created_at"`
		Description   string              `json:"description,omitempty"`
		Status        *string             `json:"status,omitempty"`
		RaiserID      string              `json:"raiser_id,omitempty"`
		AssigneeID    string              `json:"assignee_id,omitempty"`
		CaseContext   *thread.CaseContext `json:"case_context,omitempty"`
		LastMessageAt *time.Time          `json:"last_message_at"`
		Participants  []Participant       `json:"participants"`
	}

	InboxThread struct {
		Thread       Thread           `json:"thread"`
		Unread       bool             `json:"unread"`
		LastMessage  *entity.Message  `json:"last_message"`
		Counterparts []entity.Profile `json:"counterparts"`
	}

	FindOrCreateDirectRequest struct {
		PeerID string `json:"peer_id" jsonschema:"required"`
	}

	CreateComplaintCaseRequest struct {
		AssigneeID  string `json:"assignee_id"`
		Subject     string `json:"subject" jsonschema:"required"`
		Description string `json:"description"`
		PropertyID  string `json:"property_id"`
		UnitID      string `json:"unit_id"`
		Category    string `json:"category"`
	}

	CreateGroupRequest struct {
		Subject   string   `json:"subject" jsonschema:"required"`
		MemberIDs []string `json:"member_ids"`
	}

	AddParticipantRequest struct {
		ThreadID uint   `json:"thread_id" jsonschema:"required"`
		UserID   string `json:"user_id" jsonschema:"required"`
	}

	ListThreadsRequest struct {
		Kind string `json:"kind,omitempty" jsonschema:"enum=direct,enum=group,enum=complaint_case"`
	}

	ListThreadsResponse struct {
		Threads []InboxThread `json:"threads"`
	}

	GetThreadRequest struct {
		ThreadID uint `json:"thread_id" jsonschema:"required"`
	}

	UpdateCaseStatusRequest struct {
		ThreadID uint   `json:"thread_id" jsonschema:"required"`
		Status   string `json:"status" jsonschema:"required,enum=open,enum=in_progress,enum=awaiting_external,enum=resolved,enum=closed"`
	}

	ReassignCaseRequest struct {
		ThreadID   uint   `json:"thread_id" jsonschema:"required"`
		AssigneeID string `json:"assignee_id" jsonschema:"required"`
	}

	PostMessageRequest struct {
		ThreadID     uint   `json:"thread_id" jsonschema:"required"`
		Body         string `json:"body"`
		AttachmentID *uint  `json:"attachment_ref,omitempty"`
	}

	GetMessagesRequest struct {
		ThreadID uint   `json:"thread_id" jsonschema:"required"`
		Cursor   string `json:"cursor,omitempty"`
		Limit    int    `json:"limit,omitempty"`
	}

	GetMessagesResponse struct {
		Messages   []entity.Message          `json:"messages"`
		NextCursor string                    `json:"next_cursor"`
		Senders    map[string]entity.Profile `json:"senders"`
	}

	MarkOpenedRequest struct {
		ThreadID uint `json:"thread_id" jsonschema:"required"`
	}

	MarkOpenedResponse struct {
		LastOpenedAt time.Time `json:"last_opened_at"`
	}

	GetUnreadRequest struct {
		ThreadIDs []uint `json:"thread_ids"`
	}

	GetUnreadResponse struct {
		ThreadIDs []uint `json:"thread_ids"`
	}

	ResolveAttachmentRequest struct {
		AttachmentID uint `json:"attachment_id" jsonschema:"required"`
	}

	ResolveAttachmentResponse = attachment.Resolved

	UploadAttachmentRequest struct {
		FileName    string `json:"file_name"`
		ContentType string `json:"content_type"`
		// Data is base64 encoded on the wire.
		Data []byte `json:"data" jsonschema:"required"`
	}

	UploadAttachmentResponse struct {
		AttachmentID uint   `json:"attachment_id"`
		DisplayName  string `json:"display_name"`
		ContentType  string `json:"content_type"`
		ByteSize     int64  `json:"byte_size"`
	}
)

func NewThread(thr *entity.Thread) Thread {
	res := Thread{
		ID:            thr.ID,
		Kind:          string(thr.Kind),
		Subject:       thr.Subject,
		CreatedBy:     thr.CreatedBy,
		CreatedAt:     thr.CreatedAt,
		Description:   thr.Description,
		RaiserID:      thr.RaiserID,
		AssigneeID:    thr.AssigneeID,
		LastMessageAt: thr.LastMessageAt,
		Participants: gog.Map(thr.Participants, func(p entity.Participant) Participant {
			return Participant{
				UserID:   p.UserID,
				Role:     string(p.Role),
				JoinedAt: p.JoinedAt,
			}
		}),
	}
	if thr.Status != nil {
		res.Status = gog.PtrOf(string(*thr.Status))
	}
	if thr.Kind == entity.ThreadKindComplaintCase {
		if caseCtx, err := thread.CaseContextOf(thr); err == nil && caseCtx != (thread.CaseContext{}) {
			res.CaseContext = &caseCtx
		}
	}
	return res
}

func NewInboxThread(entry lodgechat.InboxEntry) InboxThread {
	return InboxThread{
		Thread:       NewThread(&entry.Thread),
		Unread:       entry.Unread,
		LastMessage:  entry.LastMessage,
		Counterparts: entry.Counterparts,
	}
}
