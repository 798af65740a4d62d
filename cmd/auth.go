package cmd

import (
	"errors"
	"fmt"

	"bb-cli/auth"
	"bb-cli/bitbucket"
	"bb-cli/display"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Bitbucket credentials",
	Long: `Store, verify and remove Bitbucket credentials. Credentials live in
the operating system keyring, one entry per profile.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store credentials for the active profile",
	Long: `Prompt for a Bitbucket username and app password, verify them
against the API and store them in the system keyring.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		profile := store.ActiveProfileName()

		var creds auth.Credentials
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Bitbucket username").
					Value(&creds.Username),
				huh.NewInput().
					Title("App password").
					EchoMode(huh.EchoModePassword).
					Value(&creds.AppPassword),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("reading credentials: %w", err)
		}

		client := bitbucket.NewClient(bitbucket.WithAppPassword(creds.Username, creds.AppPassword))
		user, err := client.CurrentUser(cmd.Context())
		if err != nil {
			return fmt.Errorf("verifying credentials: %w", err)
		}

		if err := auth.Save(profile, creds); err != nil {
			return err
		}
		// Remember who this profile authenticates as.
		if err := store.Set(fmt.Sprintf("profile.%s.user", profile), creds.Username); err != nil {
			return err
		}
		display.Successf("Logged in to profile %q as %s.", profile, user.DisplayName)
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the active profile's credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		profile := store.ActiveProfileName()

		if err := auth.Delete(profile); err != nil {
			return err
		}
		display.Successf("Logged out of profile %q.", profile)
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the active profile has working credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		profile := store.ActiveProfileName()

		_, err = auth.Load(profile)
		if errors.Is(err, auth.ErrNotLoggedIn) {
			display.Warnf("Profile %q is not logged in.", profile)
			return nil
		}
		if err != nil {
			return err
		}

		user, err := newClient(store).CurrentUser(cmd.Context())
		if err != nil {
			return fmt.Errorf("verifying credentials: %w", err)
		}
		display.Successf("Profile %q is logged in as %s.", profile, user.DisplayName)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
}
