package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/pyassist/internal/render"
)

func newAskCmd() *cobra.Command {
	var (
		stream   bool
		noStream bool
		copyOut  bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask the assistant a question",
		Long:  "Sends a question in the current conversation and prints the answer. With no arguments the question is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			if question == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read question: %w", err)
				}
				question = string(data)
			}

			a, err := openApp(cmd, appOpts{})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := a.requireSession(ctx); err != nil {
				return err
			}

			useStream := a.cfg.UI.Streaming
			if cmd.Flags().Changed("stream") {
				useStream = stream
			}
			if noStream {
				useStream = false
			}
			if useStream {
				err = a.ctrl.SendStream(ctx, question)
			} else {
				err = a.ctrl.Send(ctx, question)
			}
			if err != nil {
				return err
			}

			if copyOut {
				id, ok := lastAnswer(a.ctrl.Messages())
				if !ok {
					return fmt.Errorf("no answer to copy")
				}
				return a.ctrl.CopyMessage(id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&stream, "stream", false, "print the answer as it is generated (default from config)")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "wait for the complete answer")
	cmd.Flags().BoolVar(&copyOut, "copy", false, "copy the answer to the clipboard")
	return cmd
}

// lastAnswer returns the id of the newest assistant message.
func lastAnswer(nodes []render.Node) (string, bool) {
	for i := len(nodes) - 1; i >= 0; i-- {
		if nodes[i].Role == render.RoleAssistant {
			return nodes[i].ID, true
		}
	}
	return "", false
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Conversation history commands",
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryLoadCmd())
	cmd.AddCommand(newHistoryDeleteCmd())
	cmd.AddCommand(newHistoryNewCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, appOpts{})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}

			entries := a.console.Sidebar()
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No conversations yet.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tUPDATED\tMESSAGES")
			for _, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", e.ID, e.Title, e.Label, e.MessageCount)
			}
			return w.Flush()
		},
	}
}

func parseConversationID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid conversation id %q", s)
	}
	return id, nil
}

func newHistoryLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <id>",
		Short: "Print a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseConversationID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, appOpts{})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			return a.ctrl.LoadConversation(cmd.Context(), id)
		},
	}
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseConversationID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, appOpts{})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			return a.ctrl.DeleteConversation(cmd.Context(), id)
		},
	}
}

func newHistoryNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Start a new conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, appOpts{})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			return a.ctrl.NewConversation(cmd.Context())
		},
	}
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the current conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, appOpts{})
			if err != nil {
				return err
			}
			defer a.Close()

			return a.ctrl.Clear(cmd.Context())
		},
	}
}
