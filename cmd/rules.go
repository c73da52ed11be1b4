package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dealflow-cli/internal/model"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and manage classification business rules",
}

// -- rules show --

var rulesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active rule set (persisted, or defaults)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("local"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rules, err := st.GetBusinessRules(ctx)
		if err != nil {
			return eris.Wrap(err, "rules show")
		}
		if rules == nil {
			defaults := model.DefaultBusinessRules()
			rules = &defaults
			fmt.Fprintln(os.Stderr, "No persisted rules; showing defaults.")
		}

		return yaml.NewEncoder(os.Stdout).Encode(rules)
	},
}

// -- rules validate --

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <rules.yaml>",
	Short: "Validate a rule file without saving it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := loadRules(args[0])
		if err != nil {
			return err
		}
		if err := rules.Validate(); err != nil {
			return err
		}
		fmt.Println("Rules are valid.")
		return nil
	},
}

// -- rules save --

var rulesSaveCmd = &cobra.Command{
	Use:   "save <rules.yaml>",
	Short: "Validate and persist a rule file as a new version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("local"); err != nil {
			return err
		}

		rules, err := loadRules(args[0])
		if err != nil {
			return err
		}
		// Never persist a configuration that violates threshold ordering.
		if err := rules.Validate(); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if rules.Version <= 0 {
			current, err := st.GetBusinessRules(ctx)
			if err != nil {
				return eris.Wrap(err, "rules save")
			}
			rules.Version = 1
			if current != nil {
				rules.Version = current.Version + 1
			}
		}

		if err := st.SaveBusinessRules(ctx, rules); err != nil {
			return eris.Wrap(err, "rules save")
		}
		fmt.Printf("Saved rules version %d.\n", rules.Version)
		return nil
	},
}

func init() {
	rulesCmd.AddCommand(rulesShowCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
	rulesCmd.AddCommand(rulesSaveCmd)
	rootCmd.AddCommand(rulesCmd)
}

// loadRules reads a BusinessRules YAML file.
func loadRules(path string) (*model.BusinessRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read rules file %s", path)
	}
	var rules model.BusinessRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, eris.Wrapf(err, "parse rules file %s", path)
	}
	return &rules, nil
}
