package cli

import (
	"fmt"
	"io"

	"github.com/soyeahso/kairos/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit the config file",
	}

	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigUnsetCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigValidateCmd())

	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a value from the config file (e.g. model.provider)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, doc, err := openKey(args[0])
			if err != nil {
				return err
			}
			val, ok := key.Lookup(doc)
			if !ok {
				return fmt.Errorf("%s is not set in %s", key, paths.Config)
			}
			return printValue(cmd.OutOrStdout(), val)
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a value to the config file",
		Long: "Write a value to the config file. The value is typed like YAML:\n" +
			"8080 is a number, true a boolean and [a, b] a list.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, doc, err := openKey(args[0])
			if err != nil {
				return err
			}
			value := config.DecodeValue(args[1])
			key.Set(doc, value)
			if err := saveDoc(cmd.ErrOrStderr(), doc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a value from the config file, restoring its default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, doc, err := openKey(args[0])
			if err != nil {
				return err
			}
			if !key.Unset(doc) {
				return fmt.Errorf("%s is not set in %s", key, paths.Config)
			}
			if err := saveDoc(cmd.ErrOrStderr(), doc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unset %s\n", key)
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), paths.Config)
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the effective configuration for problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadedConfig()
			if err != nil {
				return err
			}
			issues := config.Validate(&cfg)
			printIssues(cmd.OutOrStdout(), issues)
			if len(issues) > 0 {
				return fmt.Errorf("config has %d issue(s)", len(issues))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", paths.Config)
			return nil
		},
	}
}

func openKey(raw string) (config.KeyPath, map[string]any, error) {
	key, err := config.ParseKeyPath(raw)
	if err != nil {
		return nil, nil, err
	}
	doc, err := config.LoadRaw(paths.Config)
	if err != nil {
		return nil, nil, err
	}
	return key, doc, nil
}

// saveDoc refuses documents that no longer decode into a Config. Validation
// issues are only reported, since related keys are often set one at a time.
func saveDoc(warn io.Writer, doc map[string]any) error {
	cfg, err := config.DecodeRaw(doc)
	if err != nil {
		return err
	}
	if err := paths.EnsureDirs(); err != nil {
		return err
	}
	if err := config.SaveRaw(paths.Config, doc); err != nil {
		return err
	}
	if issues := config.Validate(&cfg); len(issues) > 0 {
		fmt.Fprintln(warn, "warning: the config now has issues:")
		printIssues(warn, issues)
	}
	return nil
}

func printIssues(w io.Writer, issues []config.ValidationIssue) {
	for _, issue := range issues {
		fmt.Fprintf(w, "  - %s\n", issue)
	}
}

// printValue prints scalars bare and maps or lists as YAML.
func printValue(w io.Writer, v any) error {
	switch v.(type) {
	case map[string]any, []any:
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		_, err := fmt.Fprintln(w, v)
		return err
	}
}
