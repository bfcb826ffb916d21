package main

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/jsonrpc"
	"github.com/habiliai/lodgechat/realtime"
)

func schemas() map[string]*jsonschema.Schema {
	reflector := &jsonschema.Reflector{}

	return map[string]*jsonschema.Schema{
		"realtime.Event":                      realtime.Schema(),
		"Messaging.FindOrCreateDirect":        reflector.Reflect(&jsonrpc.FindOrCreateDirectRequest{}),
		"Messaging.CreateComplaintCase":       reflector.Reflect(&jsonrpc.CreateComplaintCaseRequest{}),
		"Messaging.CreateGroup":               reflector.Reflect(&jsonrpc.CreateGroupRequest{}),
		"Messaging.AddParticipant":            reflector.Reflect(&jsonrpc.AddParticipantRequest{}),
		"Messaging.ListThreads":               reflector.Reflect(&jsonrpc.ListThreadsRequest{}),
		"Messaging.GetThread":                 reflector.Reflect(&jsonrpc.GetThreadRequest{}),
		"Messaging.UpdateCaseStatus":          reflector.Reflect(&jsonrpc.UpdateCaseStatusRequest{}),
		"Messaging.ReassignCase":              reflector.Reflect(&jsonrpc.ReassignCaseRequest{}),
		"Messaging.PostMessage":               reflector.Reflect(&jsonrpc.PostMessageRequest{}),
		"Messaging.GetMessages":               reflector.Reflect(&jsonrpc.GetMessagesRequest{}),
		"Messaging.MarkOpened":                reflector.Reflect(&jsonrpc.MarkOpenedRequest{}),
		"Messaging.GetUnread":                 reflector.Reflect(&jsonrpc.GetUnreadRequest{}),
		"Messaging.ResolveAttachment":         reflector.Reflect(&jsonrpc.ResolveAttachmentRequest{}),
		"Messaging.UploadAttachment":          reflector.Reflect(&jsonrpc.UploadAttachmentRequest{}),
		"Messaging.GetMessages#response":      reflector.Reflect(&jsonrpc.GetMessagesResponse{}),
		"Messaging.ListThreads#response":      reflector.Reflect(&jsonrpc.ListThreadsResponse{}),
		"Messaging.UploadAttachment#response": reflector.Reflect(&jsonrpc.UploadAttachmentResponse{}),
	}
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schemas of the rpc requests and realtime events",
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(schemas()); err != nil {
				return errors.Wrapf(err, "failed to encode schemas")
			}
			return nil
		},
	}
}
