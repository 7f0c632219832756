package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/richsynapse/synapsehub-client/internal/chat"
	"github.com/richsynapse/synapsehub-client/internal/stream"
)

func newChatCommand(opts *globalOptions) *cobra.Command {
	var chatID, knowledgeIndex string
	var sync bool
	cmd := &cobra.Command{
		Use:   "chat MESSAGE...",
		Short: "Stream an interview chat reply",
		Long: `Sends MESSAGE to the chat stream and prints the reply as it arrives.
Pass --chat-id to continue an earlier conversation; without it a new
conversation id is generated and printed on stderr. With --sync the
reply is fetched in a single response.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if sync {
					return chatSync(cmd, a, strings.Join(args, " "), chatID)
				}
				tr := newTerminalTranscript(cmd)
				sess, err := a.chat.StreamInterview(cmd.Context(), chat.InterviewRequest{
					Message:        strings.Join(args, " "),
					ChatID:         chatID,
					KnowledgeIndex: knowledgeIndex,
				}, tr.OnEvent, tr.OnError)
				if err != nil {
					return err
				}
				if chatID == "" {
					id, _ := sess.Request().Param(chat.ParamChatID)
					fmt.Fprintf(cmd.ErrOrStderr(), "chat id: %s\n", id)
				}
				return finish(cmd, tr, sess, true)
			})
		},
	}
	cmd.Flags().StringVar(&chatID, "chat-id", "", "conversation id to continue")
	cmd.Flags().StringVar(&knowledgeIndex, "knowledge-index", "", "knowledge base to answer from")
	cmd.Flags().BoolVar(&sync, "sync", false, "wait for the whole reply instead of streaming")
	return cmd
}

func chatSync(cmd *cobra.Command, a *app, message, chatID string) error {
	if chatID == "" {
		chatID = a.chat.NewChatID()
		fmt.Fprintf(cmd.ErrOrStderr(), "chat id: %s\n", chatID)
	}
	var token string
	sess, err := a.store.Load(cmd.Context())
	if err != nil {
		return err
	}
	if sess != nil {
		token = sess.Token
	}
	reply, err := a.api.ChatSync(cmd.Context(), token, message, chatID)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply)
	return nil
}

func newAgentCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "agent MESSAGE...",
		Short: "Stream an autonomous agent run",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				tr := newTerminalTranscript(cmd)
				// agent steps arrive as whole lines
				tr.Tee = func(chunk string) { fmt.Fprintln(cmd.OutOrStdout(), chunk) }
				sess, err := a.chat.StreamAgent(cmd.Context(), strings.Join(args, " "), tr.OnEvent, tr.OnError)
				if err != nil {
					return err
				}
				return finish(cmd, tr, sess, false)
			})
		},
	}
}

func newTerminalTranscript(cmd *cobra.Command) *chat.Transcript {
	out := cmd.OutOrStdout()
	return &chat.Transcript{Tee: func(chunk string) { fmt.Fprint(out, chunk) }}
}

// finish waits for the session; Ctrl-C cancels the command context, which
// closes it.
func finish(cmd *cobra.Command, tr *chat.Transcript, sess *stream.Session, endLine bool) error {
	err := tr.Wait(cmd.Context(), sess)
	if endLine && tr.Chunks() > 0 {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, chat.ErrInterrupted):
		fmt.Fprintln(cmd.ErrOrStderr(), "interrupted")
		return nil
	case stream.IsValidation(err):
		return fmt.Errorf("message rejected: %w", err)
	case tr.Chunks() == 0:
		return fmt.Errorf("could not open stream: %w", err)
	default:
		return fmt.Errorf("stream dropped after %d chunks: %w", tr.Chunks(), err)
	}
}
