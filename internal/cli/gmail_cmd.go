package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/soyeahso/kairos/internal/tools"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

func newGmailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gmail",
		Short: "Manage the Gmail tool credentials",
	}
	cmd.AddCommand(newGmailAuthCmd())
	return cmd
}

func newGmailAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize Kairos to use your Gmail account and store the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadedConfig()
			if err != nil {
				return err
			}
			gc := cfg.Tools.Gmail
			if gc.CredentialsFile == "" || gc.TokenFile == "" {
				return errors.New("tools.gmail.credentialsFile and tools.gmail.tokenFile must be set")
			}
			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			oc, err := tools.GmailAuthConfig(paths.CredentialPath(gc.CredentialsFile))
			if err != nil {
				return err
			}
			tok, err := tokenFromPrompt(cmd, oc)
			if err != nil {
				return err
			}

			tokenPath := paths.CredentialPath(gc.TokenFile)
			if err := tools.SaveGmailToken(tokenPath, tok); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", tokenPath)
			return nil
		},
	}
}

// tokenFromPrompt runs the copy-paste OAuth flow on the command's stdio.
func tokenFromPrompt(cmd *cobra.Command, oc *oauth2.Config) (*oauth2.Token, error) {
	authURL := oc.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(cmd.OutOrStdout(), "Go to the following link in your browser then type the authorization code:\n%v\n", authURL)

	code, err := readCode(cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	tok, err := oc.Exchange(cmd.Context(), code)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return tok, nil
}

func readCode(r io.Reader) (string, error) {
	var code string
	if _, err := fmt.Fscan(r, &code); err != nil {
		return "", fmt.Errorf("unable to read authorization code: %w", err)
	}
	return code, nil
}
