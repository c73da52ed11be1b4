package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealflow-cli/internal/analysis"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Fetch or generate single-company AI reports",
}

// -- report show --

var reportShowCmd = &cobra.Command{
	Use:   "show <orgnr>",
	Short: "Show the cached report for a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("local"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		report, err := st.GetReport(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "report show")
		}
		if report == nil {
			fmt.Fprintf(os.Stderr, "No report generated for %s yet. Run 'dealflow report generate %s'.\n", args[0], args[0])
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

// -- report generate --

var reportForce bool

var reportGenerateCmd = &cobra.Command{
	Use:   "generate <orgnr>",
	Short: "Generate a report, cache-first unless --force",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		orch := initOrchestrator(st)
		report, err := orch.GenerateReport(ctx, args[0], reportForce)
		if errors.Is(err, analysis.ErrReportPending) {
			fmt.Fprintln(os.Stderr, "Report still not ready; try again shortly.")
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "report generate")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	reportGenerateCmd.Flags().BoolVar(&reportForce, "force", false, "regenerate even when a cached report exists")

	reportCmd.AddCommand(reportShowCmd)
	reportCmd.AddCommand(reportGenerateCmd)
	rootCmd.AddCommand(reportCmd)
}
