package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealflow-cli/internal/analysis"
	"github.com/sells-group/dealflow-cli/internal/cost"
	"github.com/sells-group/dealflow-cli/internal/model"
)

var (
	analyzeMode         string
	analyzeFile         string
	analyzeInstructions string
	analyzeInitiatedBy  string
	analyzeEstimateOnly bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Submit a screening or deep-dive analysis run",
	Long:  "Reads a companies JSON file, submits it to the analysis backend in the chosen mode, persists the run, and prints the result.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		mode := model.AnalysisMode(analyzeMode)
		if mode != model.ModeScreening && mode != model.ModeDeep {
			return eris.Errorf("analyze: mode must be screening or deep, got %q", analyzeMode)
		}

		companies, err := loadCompanies(analyzeFile)
		if err != nil {
			return err
		}

		if analyzeEstimateOnly {
			calc := cost.NewCalculator(cfg.Cost)
			var estimate float64
			if mode == model.ModeDeep {
				estimate = calc.Deep(len(companies))
			} else {
				estimate = calc.Screening(len(companies))
			}
			fmt.Printf("%d companies, %s mode: estimated $%.2f\n", len(companies), mode, estimate)
			return nil
		}

		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		orch := initOrchestrator(st)
		run, err := orch.Submit(ctx, analysis.Request{
			Mode:         mode,
			Companies:    companies,
			Instructions: analyzeInstructions,
			InitiatedBy:  analyzeInitiatedBy,
		})
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeMode, "mode", "screening", "analysis mode (screening or deep)")
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "path to companies JSON file (required)")
	analyzeCmd.Flags().StringVar(&analyzeInstructions, "instructions", "", "extra instructions for the backend")
	analyzeCmd.Flags().StringVar(&analyzeInitiatedBy, "initiated-by", "", "who triggered the run")
	analyzeCmd.Flags().BoolVar(&analyzeEstimateOnly, "estimate", false, "print the cost estimate and exit without submitting")
	_ = analyzeCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(analyzeCmd)
}

// loadCompanies reads a JSON array of companies from path.
func loadCompanies(path string) ([]model.Company, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read companies file %s", path)
	}
	var companies []model.Company
	if err := json.Unmarshal(data, &companies); err != nil {
		return nil, eris.Wrapf(err, "parse companies file %s", path)
	}
	return companies, nil
}
