package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/lattice/internal/validator"
	"github.com/aretw0/lattice/pkg/adapters/file"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Check activity documents for errors",
	Long: `Parses each document and checks its navigation targets, templates, scripts
and transitions. Without arguments every document in the activity directory is checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reports, err := collectReports(cmd, args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		failed := 0
		for _, r := range reports {
			for _, w := range r.Warnings {
				fmt.Fprintf(out, "%s: warning: %s\n", r.Path, w)
			}
			for _, e := range r.Errors {
				fmt.Fprintf(out, "%s: error: %s\n", r.Path, e)
			}
			if !r.OK() {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d documents are invalid", failed, len(reports))
		}
		fmt.Fprintf(out, "%d documents are valid\n", len(reports))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func collectReports(cmd *cobra.Command, args []string) ([]*validator.Report, error) {
	if len(args) > 0 {
		reports := make([]*validator.Report, 0, len(args))
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			reports = append(reports, validator.ValidateBytes(path, data))
		}
		return reports, nil
	}

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(cfg.ActivityRoot)
	if err != nil {
		return nil, err
	}
	return validator.ValidateLoader(cmd.Context(), file.NewLoader(root))
}
