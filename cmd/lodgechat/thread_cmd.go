package main

import (
	"mime"
	"os"
	"path/filepath"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/habiliai/lodgechat/client"
	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/jsonrpc"
)

func newThreadCmd() *cobra.Command {
	flags := &struct {
		addr   string
		userId string
	}{}
	cmd := &cobra.Command{
		Use:     "thread",
		Short:   "Talk to a running server as one user",
		Aliases: []string{"threads"},
	}
	cmd.PersistentFlags().StringVar(&flags.addr, "addr", "http://localhost:9080/rpc", "Address of the rpc endpoint")
	cmd.PersistentFlags().StringVar(&flags.userId, "user", os.Getenv("LODGECHAT_USER"), "User id to act as")

	newClient := func() (client.Client, error) {
		if flags.userId == "" {
			return nil, errors.Errorf("--user is required")
		}
		return client.NewClient(flags.addr, flags.userId), nil
	}

	render := func(cmd *cobra.Command, v any) error {
		out, err := yaml.Marshal(v)
		if err != nil {
			return errors.Wrapf(err, "failed to encode output")
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}

	inboxCmd := &cobra.Command{
		Use:   "inbox",
		Short: "List threads with unread flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := newClient()
			if err != nil {
				return err
			}
			res, err := cli.ListThreads(cmd.Context(), &jsonrpc.ListThreadsRequest{})
			if err != nil {
				return err
			}
			return render(cmd, res.Threads)
		},
	}

	directCmd := &cobra.Command{
		Use:   "direct <peer-id>",
		Short: "Find or create the direct thread with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := newClient()
			if err != nil {
				return err
			}
			thr, err := cli.FindOrCreateDirect(cmd.Context(), &jsonrpc.FindOrCreateDirectRequest{PeerID: args[0]})
			if err != nil {
				return err
			}
			return render(cmd, thr)
		},
	}

	sendCmd := func() *cobra.Command {
		var file string
		cmd := &cobra.Command{
			Use:   "send <thread-id> [message]",
			Short: "Post a message, optionally with an attachment",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				threadId, err := parseThreadId(args[0])
				if err != nil {
					return err
				}
				cli, err := newClient()
				if err != nil {
					return err
				}

				req := &jsonrpc.PostMessageRequest{ThreadID: threadId}
				if len(args) > 1 {
					req.Body = args[1]
				}
				if file != "" {
					data, err := os.ReadFile(file)
					if err != nil {
						return errors.Wrapf(err, "failed to read attachment: %s", file)
					}
					uploaded, err := cli.UploadAttachment(cmd.Context(), &jsonrpc.UploadAttachmentRequest{
						FileName:    filepath.Base(file),
						ContentType: mime.TypeByExtension(filepath.Ext(file)),
						Data:        data,
					})
					if err != nil {
						return err
					}
					req.AttachmentID = &uploaded.AttachmentID
				}

				msg, err := cli.PostMessage(cmd.Context(), req)
				if err != nil {
					return err
				}
				return render(cmd, msg)
			},
		}
		cmd.Flags().StringVarP(&file, "file", "f", "", "File to attach")
		return cmd
	}

	messagesCmd := func() *cobra.Command {
		var (
			cursor string
			limit  int
		)
		cmd := &cobra.Command{
			Use:   "messages <thread-id>",
			Short: "List messages of a thread and mark it opened",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				threadId, err := parseThreadId(args[0])
				if err != nil {
					return err
				}
				cli, err := newClient()
				if err != nil {
					return err
				}

				page, err := cli.GetMessages(cmd.Context(), &jsonrpc.GetMessagesRequest{
					ThreadID: threadId,
					Cursor:   cursor,
					Limit:    limit,
				})
				if err != nil {
					return err
				}
				if _, err := cli.MarkOpened(cmd.Context(), &jsonrpc.MarkOpenedRequest{ThreadID: threadId}); err != nil {
					return err
				}
				return render(cmd, page)
			},
		}
		cmd.Flags().StringVar(&cursor, "cursor", "", "Cursor returned by a previous page")
		cmd.Flags().IntVar(&limit, "limit", 50, "Page size")
		return cmd
	}

	statusCmd := &cobra.Command{
		Use:   "status <thread-id> <status>",
		Short: "Move a complaint case to another status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			threadId, err := parseThreadId(args[0])
			if err != nil {
				return err
			}
			cli, err := newClient()
			if err != nil {
				return err
			}
			thr, err := cli.UpdateCaseStatus(cmd.Context(), &jsonrpc.UpdateCaseStatusRequest{ThreadID: threadId, Status: args[1]})
			if err != nil {
				return err
			}
			return render(cmd, thr)
		},
	}

	complaintCmd := func() *cobra.Command {
		req := &jsonrpc.CreateComplaintCaseRequest{}
		cmd := &cobra.Command{
			Use:   "complaint <subject>",
			Short: "Raise a complaint case",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cli, err := newClient()
				if err != nil {
					return err
				}
				req.Subject = args[0]
				thr, err := cli.CreateComplaintCase(cmd.Context(), req)
				if err != nil {
					return err
				}
				return render(cmd, thr)
			},
		}
		cmd.Flags().StringVar(&req.AssigneeID, "assignee", "", "Staff member handling the case")
		cmd.Flags().StringVar(&req.Description, "description", "", "Details of the complaint")
		cmd.Flags().StringVar(&req.PropertyID, "property", "", "Property id")
		cmd.Flags().StringVar(&req.UnitID, "unit", "", "Unit id")
		cmd.Flags().StringVar(&req.Category, "category", "", "Complaint category")
		return cmd
	}

	cmd.AddCommand(
		inboxCmd,
		directCmd,
		sendCmd(),
		messagesCmd(),
		statusCmd,
		complaintCmd(),
	)

	return cmd
}

func parseThreadId(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.Errorf("thread-id must be a positive integer")
	}
	return uint(id), nil
}
