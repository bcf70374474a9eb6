// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ctvkit/ctvaudit/internal/gateway"
	"github.com/ctvkit/ctvaudit/internal/usecase"
)

// newLogger creates the command logger. Warnings (probe failures, missing
// token) always reach stderr; --verbose lowers the threshold to debug.
func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           level,
	})
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audits a task view's packages and outputs the score matrix",
	Long: `Audits every package in the given CRAN task view against the nine
best-practice checks and outputs the per-package check matrix, per-check
pass counts and score summary in JSON or YAML format.

Set GITHUB_TOKEN to raise the GitHub API rate ceiling; without it the
repository checks run unauthenticated and large task views may exhaust
the anonymous quota.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		// Get the verbose flag from the root command to set up the logger.
		verbose, _ := cmd.InheritedFlags().GetBool("verbose")
		logger := newLogger(os.Stderr, verbose)

		view, _ := cmd.Flags().GetString("view")
		format, _ := cmd.Flags().GetString("format")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if format != "json" && format != "yaml" {
			fmt.Fprintf(os.Stderr, "Unknown --format %q. Use json or yaml.\n", format)
			os.Exit(1)
		}

		// The token is optional: unauthenticated runs work against the
		// REST API but with a much lower rate ceiling.
		token := os.Getenv("GITHUB_TOKEN")
		if token == "" {
			logger.Warn("GITHUB_TOKEN is not set; running unauthenticated with a low rate limit")
		}

		// Inject dependencies and run the main business logic.
		prober, err := gateway.NewGitHubProber(token, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create GitHub prober: %v\n", err)
			os.Exit(1)
		}
		registry := gateway.NewCRANGateway(logger)
		auditor := usecase.NewAuditor(registry, prober, logger, concurrency)

		report, err := auditor.Audit(ctx, view)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to audit task view: %v\n", err)
			os.Exit(1)
		}

		var out []byte
		switch format {
		case "yaml":
			out, err = yaml.Marshal(report)
		default:
			out, err = json.MarshalIndent(report, "", "  ")
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to marshal report: %v\n", err)
			os.Exit(1)
		}

		// Print the final report to standard output.
		fmt.Println(string(out))
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.PersistentFlags().StringP("view", "t", "", "Target CRAN task view name (required)")
	auditCmd.MarkPersistentFlagRequired("view")
	auditCmd.Flags().String("format", "json", "Output format: json or yaml")
	auditCmd.Flags().Int("concurrency", 8, "Number of packages audited in parallel")
}
