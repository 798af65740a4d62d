package cmd

import (
	"fmt"
	"os"

	"bb-cli/common"
	"bb-cli/config"
	"bb-cli/display"
	"bb-cli/git"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage bb configuration",
	Long: `Read and write configuration. Global keys are "user" and
"profile.<name>.<option>"; the bare keys workspace, repository and
remote address the active profile. "config init" writes a per-repository
override file.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		key := expandBareKey(store, args[0])
		if err := store.Set(key, args[1]); err != nil {
			return err
		}
		display.Successf("Set %s.", key)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		value, ok := store.Get(args[0])
		if !ok {
			// Bare profile option keys fall back to the active profile.
			value, ok = store.Get(expandBareKey(store, args[0]))
		}
		if !ok {
			return common.NewValidationError(args[0], "no such configuration value")
		}
		fmt.Println(value)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration values with their source layer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		entries := store.List()
		if jsonOut {
			return display.JSON(entries)
		}
		for _, e := range entries {
			fmt.Printf("%s = %s (%s)\n", e.Key, e.Value, e.Layer)
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a per-repository configuration file",
	Long: `Create a ` + config.LocalFileName + ` override in the repository root,
or store the values on the active profile instead. Values derived from
the git remote are offered as defaults.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		probe := git.NewProbe(git.NewDefaultRunner(""))

		var override config.LocalOverride
		if info, ok := probe.RemoteRepo(config.DefaultRemoteName); ok {
			override.Workspace = info.Workspace
			override.Repository = info.RepoSlug
		}

		local := true
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Workspace").
					Value(&override.Workspace),
				huh.NewInput().
					Title("Repository").
					Value(&override.Repository),
				huh.NewInput().
					Title("Git remote").
					Placeholder(config.DefaultRemoteName).
					Value(&override.Remote),
				huh.NewConfirm().
					Title("Save as a repository-local override?").
					Description("No stores the values on the active profile instead.").
					Value(&local),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}

		if !local {
			return initProfile(override)
		}

		dir, ok := probe.RepoRoot()
		if !ok {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolving working directory: %w", err)
			}
			dir = wd
		}

		path, err := config.InitLocal(dir, override)
		if err != nil {
			return err
		}
		display.Successf("Wrote %s.", path)
		return nil
	},
}

// initProfile stores the collected values on the active profile
// instead of a local file.
func initProfile(override config.LocalOverride) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	profile := store.ActiveProfileName()

	for _, kv := range []struct{ option, value string }{
		{"workspace", override.Workspace},
		{"repository", override.Repository},
		{"remote", override.Remote},
	} {
		if kv.value == "" {
			continue
		}
		if err := store.Set(fmt.Sprintf("profile.%s.%s", profile, kv.option), kv.value); err != nil {
			return err
		}
	}
	display.Successf("Updated profile %q.", profile)
	return nil
}

// expandBareKey rewrites the convenience keys workspace, repository and
// remote into their profile.<active>.<option> form.
func expandBareKey(store *config.Store, key string) string {
	switch key {
	case "workspace", "repository", "remote":
		return fmt.Sprintf("profile.%s.%s", store.ActiveProfileName(), key)
	}
	return key
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configInitCmd)
}
