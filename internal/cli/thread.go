package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/soyeahso/kairos/internal/domain"
	"github.com/soyeahso/kairos/internal/store"
	"github.com/spf13/cobra"
)

func newThreadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thread",
		Short: "Browse stored conversation threads",
	}

	cmd.AddCommand(newThreadListCmd())
	cmd.AddCommand(newThreadShowCmd())
	cmd.AddCommand(newThreadSearchCmd())
	cmd.AddCommand(newThreadDeleteCmd())
	return cmd
}

// openStore builds an app without model collaborators for read-only commands.
func openStore(cmd *cobra.Command) (*app, error) {
	cfg, err := loadedConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cmd.Context(), cfg, log, appOptions{})
}

func newThreadListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List threads, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.checkpoints.List(cmd.Context())
			if err != nil {
				return err
			}
			printThreadList(cmd.OutOrStdout(), list)
			return nil
		},
	}
}

func printThreadList(w io.Writer, list []domain.ThreadSummary) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no threads")
		return
	}
	for _, t := range list {
		fmt.Fprintf(w, "  %-36s  %-7s  %3d msgs  %s\n",
			t.ThreadID, t.Step, t.Messages, t.UpdatedAt.Local().Format(time.DateTime))
	}
}

func newThreadShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <thread-id>",
		Short: "Print the message log of a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.checkpoints.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if st == nil {
				return fmt.Errorf("thread not found: %s", args[0])
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			printThread(cmd.OutOrStdout(), st)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the thread as JSON")
	return cmd
}

func printThread(w io.Writer, st *domain.ConversationState) {
	fmt.Fprintf(w, "Thread:     %s\n", st.ThreadID)
	fmt.Fprintf(w, "Step:       %s\n", st.Step)
	fmt.Fprintf(w, "Iterations: %d\n", st.Iterations)
	if st.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", st.Error)
	}
	fmt.Fprintln(w)
	for _, m := range st.Messages {
		fmt.Fprintf(w, "[%s] %s", m.Timestamp.Local().Format(time.TimeOnly), m.Role)
		if m.ToolCallID != "" {
			fmt.Fprintf(w, " (%s)", m.ToolCallID)
		}
		fmt.Fprintln(w)
		if m.Content != "" {
			fmt.Fprintln(w, indent(m.Content, "    "))
		}
		for _, tc := range m.ToolCalls {
			fmt.Fprintf(w, "    → %s %s(%s)\n", tc.ID, tc.Name, tc.Arguments)
		}
	}
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}

func newThreadSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Full-text search over stored messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSQLite(); err != nil {
				return err
			}

			hits, err := a.sqlite.SearchMessages(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			printHits(cmd.OutOrStdout(), hits)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of results")
	return cmd
}

func printHits(w io.Writer, hits []store.MessageHit) {
	if len(hits) == 0 {
		fmt.Fprintln(w, "no matches")
		return
	}
	for _, h := range hits {
		fmt.Fprintf(w, "%s #%d %s: %s\n", h.ThreadID, h.Seq, h.Message.Role, firstLine(h.Message.Content, 120))
	}
}

func newThreadDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <thread-id>",
		Short: "Delete a thread and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSQLite(); err != nil {
				return err
			}
			return deleteThread(cmd.Context(), a.sqlite, cmd.OutOrStdout(), args[0])
		},
	}
}

func deleteThread(ctx context.Context, s *store.SQLiteCheckpointStore, w io.Writer, threadID string) error {
	st, err := s.Load(ctx, threadID)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("thread not found: %s", threadID)
	}
	if err := s.Delete(ctx, threadID); err != nil {
		return err
	}
	fmt.Fprintf(w, "Deleted %s (%d messages)\n", threadID, len(st.Messages))
	return nil
}
