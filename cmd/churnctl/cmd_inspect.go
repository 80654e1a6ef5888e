package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var inspectFlags struct {
	json bool
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Load the artifact directory and describe it",
	Args:  cobra.NoArgs,
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectFlags.json, "json", false, "Print as JSON")
}

func runInspect(cmd *cobra.Command, _ []string) error {
	svc, cleanup, err := openService(artifactsDir, "", 1, zap.NewNop())
	if err != nil {
		return err
	}
	defer cleanup()
	info := svc.ModelInfo()

	out := cmd.OutOrStdout()
	if inspectFlags.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Fprintf(out, "Version:      %s\n", info.Version)
	fmt.Fprintf(out, "Model:        %s\n", info.ModelType)
	fmt.Fprintf(out, "Encoding:     %s\n", info.RawEncoding)
	fmt.Fprintf(out, "Probability:  %t\n", info.SupportsProbability)
	fmt.Fprintf(out, "Features:     %s\n", strings.Join(info.Features, ", "))
	fmt.Fprintf(out, "Tiers:        high >= %.2f, medium >= %.2f\n", info.Policy.HighThreshold, info.Policy.MediumThreshold)

	if len(info.Medians) > 0 {
		fmt.Fprintf(out, "Medians:\n")
		for _, field := range sortedKeys(info.Medians) {
			fmt.Fprintf(out, "  %s: %g\n", field, info.Medians[field])
		}
	}
	if len(info.Classes) > 0 {
		fmt.Fprintf(out, "Categories:\n")
		for _, field := range sortedKeys(info.Classes) {
			classes := info.Classes[field]
			labels := make([]string, len(classes))
			for code, label := range classes {
				labels[code] = fmt.Sprintf("%d=%s", code, label)
			}
			fmt.Fprintf(out, "  %s: %s\n", field, strings.Join(labels, ", "))
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
