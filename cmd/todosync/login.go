package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/todosync/internal/model"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the API token and user id",
	Long: `Prompt for the backend URL, your user id and an API token.

The token goes into the system keyring; the URL and user id are written to
the config file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		oldBaseURL := cfg.API.BaseURL
		baseURL := oldBaseURL
		user := cfg.User.ID
		var token string

		notEmpty := func(field string) func(string) error {
			return func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("%s is required", field)
				}
				return nil
			}
		}

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("API base URL").
					Value(&baseURL).
					Validate(notEmpty("base URL")),
				huh.NewInput().
					Title("User ID").
					Value(&user).
					Validate(notEmpty("user id")),
				huh.NewInput().
					Title("API token").
					EchoMode(huh.EchoModePassword).
					Value(&token).
					Validate(notEmpty("token")),
			),
		)
		if err := form.RunWithContext(cmd.Context()); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return err
		}

		if err := tokenStore().SetToken(strings.TrimSpace(token)); err != nil {
			return err
		}

		cfg.API.BaseURL = strings.TrimSpace(baseURL)
		cfg.User.ID = strings.TrimSpace(user)
		if cfg.Connectivity.ProbeURL == "" || cfg.Connectivity.ProbeURL == oldBaseURL {
			cfg.Connectivity.ProbeURL = cfg.API.BaseURL
		}
		if err := model.SaveConfig(configPath, cfg); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", cfg.User.ID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored API token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := tokenStore().DeleteToken(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Token removed.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
