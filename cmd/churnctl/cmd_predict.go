package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"churnpredict/service"
)

var predictFlags struct {
	charset  string
	format   string
	parallel int
	dbPath   string
	verbose  bool
}

var predictCmd = &cobra.Command{
	Use:   "predict [file.csv]",
	Short: "Score every customer in a CSV file",
	Long: "Reads customers with Telco column names (customerID, gender, tenure, ...)\n" +
		"from the file or stdin and writes one prediction per row.",
	Args: cobra.MaximumNArgs(1),
	RunE: runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.StringVar(&predictFlags.charset, "charset", "utf-8", "Input charset: utf-8, windows-1252, latin1 or gbk")
	f.StringVar(&predictFlags.format, "format", "csv", "Output format: csv or json")
	f.IntVar(&predictFlags.parallel, "parallel", 0, "Records scored concurrently (0 = GOMAXPROCS)")
	f.StringVar(&predictFlags.dbPath, "db", "", "Also record predictions in this SQLite audit database")
	f.BoolVarP(&predictFlags.verbose, "verbose", "v", false, "Debug logging")
}

func runPredict(cmd *cobra.Command, args []string) error {
	if predictFlags.format != "csv" && predictFlags.format != "json" {
		return fmt.Errorf("unknown format %q (want csv or json)", predictFlags.format)
	}

	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	inputs, err := readCustomers(in, predictFlags.charset)
	if err != nil {
		return err
	}

	logger, err := cliLogger(predictFlags.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	svc, cleanup, err := openService(artifactsDir, predictFlags.dbPath, predictFlags.parallel, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	results := svc.PredictDecoded(cmd.Context(), inputs)
	succeeded, failed := service.Counts(results)

	out := cmd.OutOrStdout()
	if predictFlags.format == "json" {
		err = writeResultsJSON(out, results, succeeded, failed)
	} else {
		err = writeResultsCSV(out, results)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "scored %d customers, %d failed\n", succeeded, failed)
	return nil
}

func writeResultsJSON(w io.Writer, results []service.BatchResult, succeeded, failed int) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Results   []service.BatchResult `json:"results"`
		Succeeded int                   `json:"succeeded"`
		Failed    int                   `json:"failed"`
	}{results, succeeded, failed})
}

var resultColumns = []string{"row", "customerID", "prediction", "probability", "tier", "advice", "error"}

// writeResultsCSV numbers rows from 1 to match the data lines of the input.
func writeResultsCSV(w io.Writer, results []service.BatchResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(resultColumns); err != nil {
		return err
	}
	for _, r := range results {
		row := make([]string, len(resultColumns))
		row[0] = strconv.Itoa(r.Index + 1)
		if a := r.Assessment; a != nil {
			row[1] = a.CustomerID
			row[2] = string(a.Prediction)
			if a.Probability != nil {
				row[3] = strconv.FormatFloat(*a.Probability, 'f', 4, 64)
			}
			row[4] = string(a.Tier)
			row[5] = strings.Join(a.Advice, "; ")
		}
		if r.Failure != nil {
			row[6] = r.Failure.Message
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
