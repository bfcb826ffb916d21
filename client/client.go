package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mitchellh/mapstructure"
	"github.com/ybbus/jsonrpc/v3"

	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/auth"
	rpc "github.com/habiliai/lodgechat/jsonrpc"
)

type (
	// Client calls the messaging JSON-RPC service as one user. Errors carry the
	// server's taxonomy, so errors.Is(err, errors.ErrNotFound) works across the wire.
	Client interface {
		FindOrCreateDirect(ctx context.Context, request *rpc.FindOrCreateDirectRequest) (*rpc.Thread, error)
		CreateComplaintCase(ctx context.Context, request *rpc.CreateComplaintCaseRequest) (*rpc.Thread, error)
		CreateGroup(ctx context.Context, request *rpc.CreateGroupRequest) (*rpc.Thread, error)
		AddParticipant(ctx context.Context, request *rpc.AddParticipantRequest) error
		ListThreads(ctx context.Context, request *rpc.ListThreadsRequest) (*rpc.ListThreadsResponse, error)
		GetThread(ctx context.Context, request *rpc.GetThreadRequest) (*rpc.Thread, error)
		UpdateCaseStatus(ctx context.Context, request *rpc.UpdateCaseStatusRequest) (*rpc.Thread, error)
		ReassignCase(ctx context.Context, request *rpc.ReassignCaseRequest) (*rpc.Thread, error)
		PostMessage(ctx context.Context, request *rpc.PostMessageRequest) (*entity.Message, error)
		GetMessages(ctx context.Context, request *rpc.GetMessagesRequest) (*rpc.GetMessagesResponse, error)
		MarkOpened(ctx context.Context, request *rpc.MarkOpenedRequest) (*rpc.MarkOpenedResponse, error)
		GetUnread(ctx context.Context, request *rpc.GetUnreadRequest) (*rpc.GetUnreadResponse, error)
		ResolveAttachment(ctx context.Context, request *rpc.ResolveAttachmentRequest) (*rpc.ResolveAttachmentResponse, error)
		UploadAttachment(ctx context.Context, request *rpc.UploadAttachmentRequest) (*rpc.UploadAttachmentResponse, error)
	}

	Option func(*jsonrpc.RPCClientOpts)

	jsonRpcClient struct {
		client jsonrpc.RPCClient
	}
)

var (
	_ Client = (*jsonRpcClient)(nil)
)

func WithHttpClient(httpClient *http.Client) Option {
	return func(opts *jsonrpc.RPCClientOpts) {
		opts.HTTPClient = httpClient
	}
}

func WithHeader(key, value string) Option {
	return func(opts *jsonrpc.RPCClientOpts) {
		opts.CustomHeaders[key] = value
	}
}

// NewClient returns a client for the rpc endpoint acting as userId.
func NewClient(url string, userId string, optionFuncs ...Option) Client {
	opts := &jsonrpc.RPCClientOpts{
		CustomHeaders: map[string]string{
			auth.UserHeader: userId,
		},
	}
	for _, f := range optionFuncs {
		f(opts)
	}

	return &jsonRpcClient{
		client: jsonrpc.NewClientWithOpts(url, opts),
	}
}

func method(name string) string {
	return rpc.MessagingServiceName + "." + name
}

// callFor keeps the rpc error of a response even when the http status is not 2xx.
func (c *jsonRpcClient) callFor(ctx context.Context, out any, name string, request any) error {
	resp, err := c.client.Call(ctx, method(name), request)
	if resp != nil && resp.Error != nil {
		return FromRPCError(resp.Error)
	}
	if err != nil {
		return errors.Wrapf(errors.ErrDependencyFailure, "failed to call %s: %v", name, err)
	}
	if resp == nil {
		return errors.Wrapf(errors.ErrDependencyFailure, "empty response from %s", name)
	}
	if out == nil {
		return nil
	}
	return errors.Wrapf(resp.GetObject(out), "failed to decode %s response", name)
}

// FromRPCError maps a JSON-RPC error back to the error taxonomy using data.kind.
func FromRPCError(rpcErr *jsonrpc.RPCError) error {
	var data rpc.ErrorData
	if rpcErr.Data != nil {
		_ = mapstructure.Decode(rpcErr.Data, &data)
	}

	sentinel := errors.FromKind(data.Kind)
	if data.Kind == "" && rpcErr.Code == -32602 {
		sentinel = errors.ErrInvalidParams
	}
	return fmt.Errorf("%w: %s (code %d)", sentinel, rpcErr.Message, rpcErr.Code)
}

func (c *jsonRpcClient) FindOrCreateDirect(ctx context.Context, request *rpc.FindOrCreateDirectRequest) (*rpc.Thread, error) {
	var response rpc.Thread
	if err := c.callFor(ctx, &response, "FindOrCreateDirect", request); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *jsonRpcClient) CreateComplaintCase(ctx context.Context, request *rpc.CreateComplaintCaseRequest) (*rpc.Thread, error) {
	var response rpc.Thread
	if err := c.callFor(ctx, &response, "CreateComplaintCase", request); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *jsonRpcClient) CreateGroup(ctx context.Context, request *rpc.CreateGroupRequest) (*rpc.Thread, error) {
	var response rpc.Thread
	if err := c.callFor(ctx, &response, "CreateGroup", request); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *jsonRpcClient) AddParticipant(ctx context.Context, request *rpc.AddParticipantRequest) error {
	return c.callFor(ctx, nil, "AddParticipant", request)
}

func (c *jsonRpcClient) ListThreads(ctx context.Context, request *rpc.ListThreadsRequest) (*rpc.ListThreadsResponse, error) {
	var response rpc.ListThreadsResponse
	if err := c.callFor(ctx, &response, "ListThreads", request); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *jsonRpcClient) GetThread(ctx context.Context, request *rpc.GetThreadRequest) (*rpc.Thread, error) {
	var response rpc.Thread
	if err := c.callFor(ctx, &response, "GetThread", request); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *jsonRpcClient) UpdateCaseStatus(ctx context.Context, request *rpc.UpdateCaseStatusRequest) (*rpc.Thread, error) {
	var response rpc.Thread
	if err := c.callFor(ctx, &response, "UpdateCaseStatus", request); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *jsonRpcClient) ReassignCase(ctx context.Context, request *rpc.ReassignCaseRequest) (*rpc.Thread, error) {
	var response rpc.Thread
	if err := c.callFor(ctx, &response, "ReassignCase", request); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *jsonRpcClient) PostMessage(ctx context.Context, request *rpc.PostMessageRequest) (*entity.Message, error) {
	var response entity.Message
	if err := c.callFor(ctx, &response, "PostMessage", request); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *jsonRpcClient) GetMessages(ctx context.Context, request *rpc.GetMessagesRequest) (*rpc.GetMessagesResponse, error) {
	var response rpc.GetMessagesResponse
	if err := c.callFor(ctx, &response, "GetMessages", request); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *jsonRpcClient) MarkOpened(ctx context.Context, request *rpc.MarkOpenedRequest) (*rpc.MarkOpenedResponse, error) {
	var response rpc.MarkOpenedResponse
	if err := c.callFor(ctx, &response, "MarkOpened", request); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *jsonRpcClient) GetUnread(ctx context.Context, request *rpc.GetUnreadRequest) (*rpc.GetUnreadResponse, error) {
	var response rpc.GetUnreadResponse
	if err := c.callFor(ctx, &response, "GetUnread", request); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *jsonRpcClient) ResolveAttachment(ctx context.Context, request *rpc.ResolveAttachmentRequest) (*rpc.ResolveAttachmentResponse, error) {
	var response rpc.ResolveAttachmentResponse
	if err := c.callFor(ctx, &response, "ResolveAttachment", request); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *jsonRpcClient) UploadAttachment(ctx context.Context, request *rpc.UploadAttachmentRequest) (*rpc.UploadAttachmentResponse, error) {
	var response rpc.UploadAttachmentResponse
	if err := c.callFor(ctx, &response, "UploadAttachment", request); err != nil {
		return nil, err
	}
	return &response, nil
}
