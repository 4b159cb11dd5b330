package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/soyeahso/kairos/internal/agent"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var (
		threadID string
		stream   bool
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the assistant (one message, or interactive when none is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadedConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log, appOptions{withModel: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if threadID == "" {
				threadID = agent.NewThreadID()
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "thread: %s\n", threadID)

			if len(args) > 0 {
				return chatTurn(ctx, a.graph, cmd.OutOrStdout(), threadID, strings.Join(args, " "), stream)
			}
			return chatLoop(ctx, a.graph, cmd.InOrStdin(), cmd.OutOrStdout(), threadID, stream)
		},
	}

	cmd.Flags().StringVar(&threadID, "thread", "", "thread to continue (default: a new thread)")
	cmd.Flags().BoolVar(&stream, "stream", false, "stream the answer and tool activity")

	return cmd
}

// chatLoop runs one turn per input line until EOF, /exit or cancellation.
// A failed turn is reported and the loop continues.
func chatLoop(ctx context.Context, g *agent.Graph, in io.Reader, out io.Writer, threadID string, stream bool) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		}
		if err := chatTurn(ctx, g, out, threadID, line, stream); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

// chatTurn runs one turn and prints the answer. With stream, model text is
// printed as it arrives along with tool activity.
func chatTurn(ctx context.Context, g *agent.Graph, out io.Writer, threadID, message string, stream bool) error {
	if !stream {
		res, err := g.Run(ctx, threadID, []string{message})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, res.Answer)
		return nil
	}

	midLine := false
	_, err := g.RunObserved(ctx, threadID, []string{message}, func(evt agent.StepEvent) {
		switch evt.Kind {
		case agent.EventDelta:
			fmt.Fprint(out, evt.Content)
			midLine = true
		case agent.EventAssistant:
			if midLine {
				fmt.Fprintln(out)
				midLine = false
			}
			for _, tc := range evt.ToolCalls {
				fmt.Fprintf(out, "  → %s(%s)\n", tc.Name, tc.Arguments)
			}
		case agent.EventToolResults:
			for _, r := range evt.Results {
				fmt.Fprintf(out, "  ← %s\n", firstLine(r.Content, 100))
			}
		}
	})
	if midLine {
		fmt.Fprintln(out)
	}
	return err
}

// firstLine returns the first line of s, cut to max runes.
func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " …"
	}
	r := []rune(s)
	if len(r) > max {
		return string(r[:max]) + "…"
	}
	return s
}
