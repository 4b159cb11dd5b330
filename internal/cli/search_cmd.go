package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/soyeahso/kairos/internal/search"
	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <question>",
		Short: "Answer a question from a web search, without a conversation thread",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadedConfig()
			if err != nil {
				return err
			}
			if cfg.Search.APIKey == "" {
				return errors.New("search.apiKey is not set (or export SERPER_API_KEY)")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a := &app{cfg: cfg, log: log}
			if err := a.buildModel(); err != nil {
				return err
			}

			st, err := a.newPipeline().Run(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printSearchState(cmd.OutOrStdout(), st, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full pipeline state as JSON")
	return cmd
}

func printSearchState(w io.Writer, st *search.State, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	fmt.Fprintln(w, st.FinalAnswer)
	if len(st.Links) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, l := range st.Links {
			fmt.Fprintf(w, "  %s\n", l)
		}
	}
	return nil
}
