package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealflow-cli/internal/classify"
	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/tier"
)

var (
	tierFile    string
	tierWeights tier.Weights
	tierSizes   tier.Sizes
)

var tierCmd = &cobra.Command{
	Use:   "tier",
	Short: "Rank a company file into Tier 1/2/3",
	Long:  "Computes composite scores from weighted, normalized metrics, partitions companies into fixed-size tiers, and labels each with its rule-based classification.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		companies, err := loadCompanies(tierFile)
		if err != nil {
			return err
		}

		ranking, err := tier.RankTiers(companies, tierWeights, tierSizes)
		if err != nil {
			return eris.Wrap(err, "tier")
		}

		// Use the persisted rule set when one exists, defaults otherwise.
		rules := model.DefaultBusinessRules()
		if err := cfg.Validate("local"); err == nil {
			if st, err := initStore(ctx); err == nil {
				defer st.Close() //nolint:errcheck
				if saved, err := st.GetBusinessRules(ctx); err == nil && saved != nil {
					rules = *saved
				}
			}
		}

		formatRanking(os.Stdout, ranking, rules)
		return nil
	},
}

func init() {
	defaults := tier.DefaultWeights()
	tierCmd.Flags().StringVar(&tierFile, "file", "", "path to companies JSON file (required)")
	tierCmd.Flags().Float64Var(&tierWeights.Revenue, "weight-revenue", defaults.Revenue, "revenue weight (percent)")
	tierCmd.Flags().Float64Var(&tierWeights.EBITMargin, "weight-margin", defaults.EBITMargin, "EBIT margin weight (percent)")
	tierCmd.Flags().Float64Var(&tierWeights.Growth, "weight-growth", defaults.Growth, "revenue growth weight (percent)")
	tierCmd.Flags().Float64Var(&tierWeights.Leverage, "weight-leverage", defaults.Leverage, "leverage weight (percent)")
	tierCmd.Flags().Float64Var(&tierWeights.Headcount, "weight-headcount", defaults.Headcount, "headcount weight (percent)")

	sizes := tier.DefaultSizes()
	tierCmd.Flags().IntVar(&tierSizes.Tier1, "tier1-size", sizes.Tier1, "tier 1 capacity")
	tierCmd.Flags().IntVar(&tierSizes.Tier2, "tier2-size", sizes.Tier2, "tier 2 capacity")
	tierCmd.Flags().IntVar(&tierSizes.Tier3, "tier3-size", sizes.Tier3, "tier 3 capacity")

	_ = tierCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(tierCmd)
}

func formatRanking(out io.Writer, r *tier.Ranking, rules model.BusinessRules) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIER\tORGNR\tNAME\tSCORE\tPROFITABILITY\tGROWTH\tSIZE")

	printTier := func(label string, companies []model.Company) {
		for _, c := range companies {
			cls := classify.Classify(c, rules)
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.3f\t%s\t%s\t%s\n",
				label, c.Orgnr, c.Name, r.Scores[c.Orgnr],
				cls.Profitability, cls.Growth, cls.CompanySize,
			)
		}
	}
	printTier("1", r.Tier1)
	printTier("2", r.Tier2)
	printTier("3", r.Tier3)
	printTier("-", r.Unsegmented)
	_ = w.Flush()
}
