package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// Execute runs the registrar CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command. The root command itself
// performs the registration.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "registrar <projectName> <indexFileURL> <buildID> [roleIds] [approved]",
		Short:   "Register an analysis report in the catalog",
		Version: a.version,
		Long: `Registrar publishes an analysis report into the catalog, links it to
a data build and grants consumer roles access to it.

Re-running with the same inputs is safe: existing resources, build links
and role grants are detected and never duplicated.

roleIds is a comma-separated list (default "cmap_core"). Pass "true" as
approved to register the report as approved; anything else registers it
for review.`,
		Example: `  registrar Foo_Bar https://reports.example.org/foo/index.html B1
  registrar Foo_Bar https://reports.example.org/foo/index.html B1 cmap_core,cmap_ext true
  registrar --dry-run -o json Foo_Bar https://reports.example.org/foo/index.html B1`,
		Args:              cobra.RangeArgs(3, 5),
		PersistentPreRunE: a.setupCommand,
		RunE:              a.runRegister,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	rootCmd.PersistentFlags().String("config", "", "config file (default is $HOME/.registrar.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringP("format", "o", "", "output format: table, json, yaml, wide")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")
	rootCmd.Flags().Bool("dry-run", false, "resolve and plan without writing to the catalog")

	rootCmd.SetVersionTemplate("registrar {{.Version}}\n")

	rootCmd.AddCommand(a.NewVersionCommand())

	return rootCmd
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	if path := mustGetString(cmd, "config"); path != "" {
		config, err := LoadConfigFile(path)
		if err != nil {
			return err
		}
		a.config = config
	}

	// Only the root command defines --dry-run.
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	a.config.UpdateFromFlags(
		mustGetBool(cmd, "verbose"),
		mustGetBool(cmd, "quiet"),
		mustGetBool(cmd, "no-color"),
		dryRun,
		mustGetString(cmd, "format"),
		mustGetString(cmd, "log-level"),
	)

	logger := newLogger(a.config, a.stderr)
	a.logger = &logger

	return nil
}

// ExitOnError is a helper that prints an error and exits with status 1.
// This is meant to be used in main.go for top-level error handling.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// mustGetBool retrieves a boolean flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}

// mustGetString retrieves a string flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}
