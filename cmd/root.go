// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ctvaudit",
	Short: "A CLI tool to audit CRAN task-view packages against best practices.",
	Long: `ctvaudit resolves a CRAN task view to its package list and scores each
package against a fixed set of community best-practice checks: declared
metadata signals (GitHub URL, roxygen2, knitr vignettes, testing framework,
deprecated dependencies) and repository structure signals (README.Rmd,
LICENSE.md, pkgdown site, GitHub Actions workflows).`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
}
