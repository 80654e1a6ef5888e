package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "churnctl",
	Short: "Offline churn scoring with trained artifacts",
	Long:  "churnctl scores customer CSV files against a trained artifact directory\nand inspects the artifacts a server would load.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.PersistentFlags().StringVar(&artifactsDir, "artifacts", "artifacts", "Trained artifact directory")
	rootCmd.Version = version
}

var artifactsDir string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
