package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/wolfman30/webchat-support-agent/internal/conversation"
)

type chatEngine interface {
	Chat(ctx context.Context, sessionID, text string) (*conversation.Reply, error)
}

// runtime lazily builds the pieces a command needs so `--help` never dials anything.
type runtime struct {
	engine func(ctx context.Context) (chatEngine, func(), error)
	client func(ctx context.Context) (conversation.LLMClient, string, func(), error)
}

func newRootCmd(rt runtime) *cobra.Command {
	root := &cobra.Command{
		Use:   "chatcli",
		Short: "Talk to the webchat support agent from a terminal",
		Long: `chatcli drives the support agent without the HTTP server.

It reads the same environment as the API (LLM_PROVIDER, LEAD_FLOW_POLICY,
KNOWLEDGE_SOURCE, SESSION_BACKEND, ...) so a terminal session exercises the
router, the QA handler, and the lead capture flow exactly as the widget does.`,
		SilenceUsage: true,
	}
	root.AddCommand(newChatCmd(rt), newTurnCmd(rt), newSmokeCmd(rt))
	return root
}

func newChatCmd(rt runtime) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, cleanup, err := rt.engine(ctx)
			if err != nil {
				return fmt.Errorf("build agent: %w", err)
			}
			defer cleanup()

			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			return repl(ctx, engine, sessionID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "resume an existing session id")
	return cmd
}

func newTurnCmd(rt runtime) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "turn <message>",
		Short: "Send a single message and print the reply",
		Example: `  chatcli turn "What plans do you offer?"
  chatcli turn --session 3f1c... "jane@example.com"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, cleanup, err := rt.engine(ctx)
			if err != nil {
				return fmt.Errorf("build agent: %w", err)
			}
			defer cleanup()

			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			reply, err := engine.Chat(ctx, sessionID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printReply(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id to continue")
	return cmd
}

func newSmokeCmd(rt runtime) *cobra.Command {
	var (
		system    string
		maxTokens int32
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "smoke <prompt>",
		Short: "Send one prompt to the configured LLM provider and report latency",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			client, provider, cleanup, err := rt.client(ctx)
			if err != nil {
				return fmt.Errorf("build llm client: %w", err)
			}
			defer cleanup()

			req := conversation.LLMRequest{
				Messages:  []conversation.ChatMessage{{Role: conversation.ChatRoleUser, Content: strings.Join(args, " ")}},
				MaxTokens: maxTokens,
			}
			if system != "" {
				req.System = []string{system}
			}

			start := time.Now()
			resp, err := client.Complete(ctx, req)
			elapsed := time.Since(start).Round(time.Millisecond)
			out := cmd.OutOrStdout()
			if err != nil {
				fmt.Fprintf(out, "provider=%s latency=%s error=%v\n", provider, elapsed, err)
				return err
			}
			fmt.Fprintf(out, "provider=%s latency=%s tokens_in=%d tokens_out=%d stop=%s\n",
				provider, elapsed, resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.StopReason)
			fmt.Fprintln(out, resp.Text)
			return nil
		},
	}
	cmd.Flags().StringVar(&system, "system", "You are a concise assistant.", "system prompt")
	cmd.Flags().Int32Var(&maxTokens, "max-tokens", 200, "maximum output tokens")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	return cmd
}

// repl runs turns until EOF or "/quit".
func repl(ctx context.Context, engine chatEngine, sessionID string, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "session %s (type /quit to exit)\n", sessionID)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		reply, err := engine.Chat(ctx, sessionID, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		printReply(out, reply)
	}
}

func printReply(out io.Writer, reply *conversation.Reply) {
	fmt.Fprintln(out, reply.Message)
	if reply.LeadStatus != nil {
		fmt.Fprintf(out, "[lead status: %s]\n", *reply.LeadStatus)
	}
}
