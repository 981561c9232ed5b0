// Package cmd implements the logvault command tree.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/3leaps/logvault/internal/config"
	"github.com/3leaps/logvault/internal/observability"
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata injected via ldflags.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	cfgFile   string
	logLevel  string
	logFormat string

	// cfg is loaded by the root PersistentPreRunE and shared by subcommands.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "logvault",
	Short: "CloudWatch log archival pipeline",
	Long: `logvault archives CloudWatch log groups to S3 in daily windows.

The evaluate command discovers log groups, computes each group's next export
window, and publishes export jobs to an SQS queue. The export and worker
commands consume those jobs and drive the CloudWatch export tasks,
bookmarking progress in log-group tags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd.Context(), cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if logFormat != "" {
			cfg.Logging.Format = logFormat
		}
		if _, err := observability.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (optional)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (json|console)")

	rootCmd.Version = versionInfo.Version
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return fmt.Errorf("%s: %w (exit code %d)", message, err, code)
}
