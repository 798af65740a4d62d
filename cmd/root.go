package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"bb-cli/auth"
	"bb-cli/bitbucket"
	"bb-cli/common"
	"bb-cli/config"
	"bb-cli/git"
	"bb-cli/logger"
	"bb-cli/resolve"

	"github.com/spf13/cobra"
)

var (
	// Command line flags
	logLevel    string
	repoFlag    string
	profileFlag string
	remoteFlag  string
	jsonOut     bool
)

var rootCmd = &cobra.Command{
	Use:   "bb",
	Short: "Bitbucket Cloud from the command line",
	Long: `bb works with Bitbucket Cloud pull requests from the terminal.
It resolves the workspace and repository from flags, local configuration,
the active profile or the git remote, in that order.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logLevel)
		logger.Debugf("Log level set to: %s", logLevel)
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command and handles errors
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		logger.Errorf("%v", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Set the logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&repoFlag, "repo", "R", "",
		"Target repository as <workspace>/<repo>, overriding all configuration")
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "",
		"Use the named profile instead of the active one")
	rootCmd.PersistentFlags().StringVar(&remoteFlag, "remote", "",
		"Git remote to derive the repository from")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false,
		"Print machine-readable JSON instead of formatted output")
}

// openStore loads the configuration layers for this invocation.
func openStore() (*config.Store, error) {
	globalPath, err := config.DefaultGlobalPath()
	if err != nil {
		return nil, err
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}
	store, err := config.Open(globalPath, wd)
	if err != nil {
		return nil, err
	}
	if profileFlag != "" {
		store.OverrideActiveProfile(profileFlag)
	}
	return store, nil
}

// newClient builds the API client for the active profile. Without
// stored credentials the client is anonymous, which still works for
// public repositories.
func newClient(store *config.Store) *bitbucket.Client {
	var opts []bitbucket.Option

	profile := store.ActiveProfile()
	if profile.APIURL != "" {
		opts = append(opts, bitbucket.WithBaseURL(profile.APIURL))
	}

	creds, err := auth.Load(store.ActiveProfileName())
	switch {
	case err == nil:
		opts = append(opts, bitbucket.WithAppPassword(creds.Username, creds.AppPassword))
	case errors.Is(err, auth.ErrNotLoggedIn):
		logger.Debugf("No credentials for profile %q, using anonymous access", store.ActiveProfileName())
	default:
		logger.Warnf("Could not load credentials: %v", err)
	}

	return bitbucket.NewClient(opts...)
}

// newResolver wires the context resolver from the store, a git probe
// on the working directory and the API client.
func newResolver(store *config.Store, client *bitbucket.Client) *resolve.Resolver {
	return &resolve.Resolver{
		Store:   store,
		Probe:   git.NewProbe(git.NewDefaultRunner("")),
		Service: client,
	}
}

// resolveOptions assembles the per-invocation overrides from the
// persistent flags plus an optional explicit PR id.
func resolveOptions(prID int, resolvePR bool) resolve.Options {
	return resolve.Options{
		RepoOverride: repoFlag,
		PRID:         prID,
		ResolvePR:    resolvePR,
		Remote:       remoteFlag,
	}
}

// parsePRID reads an optional positional PR id. Anything present must
// be a positive integer.
func parsePRID(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	id, err := strconv.Atoi(args[0])
	if err != nil || id < 1 {
		return 0, common.NewValidationError(args[0], "expected a positive pull request id")
	}
	return id, nil
}

// parsePRIDAndPatterns splits positional arguments into an optional
// leading PR id and path patterns. A first argument that parses as a
// positive integer is the id; everything else is a pattern.
func parsePRIDAndPatterns(args []string) (int, []string) {
	if len(args) == 0 {
		return 0, nil
	}
	if id, err := strconv.Atoi(args[0]); err == nil && id > 0 {
		return id, args[1:]
	}
	return 0, args
}
