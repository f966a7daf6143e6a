package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/lattice/internal/presentation/graph"
	"github.com/aretw0/lattice/pkg/adapters/file"
	"github.com/aretw0/lattice/pkg/domain"
)

var graphCmd = &cobra.Command{
	Use:   "graph <activity>",
	Short: "Export an activity as a Mermaid diagram",
	Long:  `Loads the activity and prints a Mermaid flowchart (graph TD) of its steps and transitions.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		root, err := filepath.Abs(cfg.ActivityRoot)
		if err != nil {
			return err
		}
		def, err := file.NewLoader(root).Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if at, _ := cmd.Flags().GetString("at"); at != "" {
			sectionID, stepID, err := domain.ParseTarget(at)
			if err != nil {
				return err
			}
			overlay = &graph.Overlay{SectionID: sectionID, StepID: stepID}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(def, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("at", "", "Highlight a step, as section_id:step_id")
}
