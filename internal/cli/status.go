package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/soyeahso/kairos/internal/config"
	"github.com/soyeahso/kairos/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show Kairos status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			commit, _ := version.Build()
			fmt.Fprintf(w, "Kairos %s (commit %s)\n\n", version.Version, commit)

			fmt.Fprintf(w, "Config:  %s\n", paths.Config)
			fmt.Fprintf(w, "Data:    %s\n", paths.Data)
			fmt.Fprintf(w, "Logs:    %s\n", paths.Logs)
			fmt.Fprintln(w)

			cfg, err := loadedConfig()
			if err != nil {
				fmt.Fprintf(w, "Config:  error loading: %v\n", err)
				return nil
			}
			if _, statErr := os.Stat(paths.Config); os.IsNotExist(statErr) {
				fmt.Fprintln(w, "Config:  not found (using defaults)")
			}
			printStatus(w, cfg)
			return nil
		},
	}
}

func printStatus(w io.Writer, cfg config.Config) {
	auth := "off"
	if cfg.Gateway.Auth.Token != "" {
		auth = "token"
	}
	fmt.Fprintf(w, "Gateway: port=%d bind=%s auth=%s origins=%s\n",
		cfg.Gateway.Port, cfg.Gateway.Bind, auth, strings.Join(cfg.Gateway.AllowedOrigins, ","))

	models := []string{cfg.Model.Provider + "/" + cfg.Model.Model}
	for _, f := range cfg.Model.Fallbacks {
		models = append(models, f.Provider+"/"+f.Model)
	}
	fmt.Fprintf(w, "Model:   %s\n", strings.Join(models, " → "))
	fmt.Fprintf(w, "Agent:   maxIterations=%d contextBudget=%d encoding=%s\n",
		cfg.Agent.MaxIterations, cfg.Agent.ContextBudget, cfg.Agent.Encoding)

	var enabled []string
	if cfg.Tools.Weather.Enabled {
		enabled = append(enabled, "weather")
	}
	if cfg.Tools.Gmail.Enabled {
		enabled = append(enabled, "gmail")
	}
	if cfg.Tools.IMAP.Enabled {
		enabled = append(enabled, "imap")
	}
	if cfg.Tools.Python.Enabled {
		enabled = append(enabled, "python")
	}
	if cfg.Search.Enabled {
		enabled = append(enabled, "web_search")
	}
	if len(enabled) == 0 {
		fmt.Fprintln(w, "Tools:   (none enabled)")
	} else {
		fmt.Fprintf(w, "Tools:   %s\n", strings.Join(enabled, ", "))
	}

	store := cfg.Checkpoint.Store
	if store == "sqlite" {
		store += " " + paths.DatabasePath(cfg.Checkpoint)
	}
	fmt.Fprintf(w, "Store:   %s\n", store)

	issues := config.Validate(&cfg)
	if len(issues) > 0 {
		fmt.Fprintf(w, "\nValidation issues (%d):\n", len(issues))
		for _, issue := range issues {
			fmt.Fprintf(w, "  - %s: %s\n", issue.Path, issue.Message)
		}
	}
}
