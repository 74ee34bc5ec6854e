package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/patrol/internal/workflow"
)

func newLevelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "levels [label...]",
		Short: "Show how raw model labels normalize to risk levels",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, l := range workflow.Levels() {
					fmt.Fprintf(out, "%-8s %s\n", l, l.Label())
				}
				return nil
			}
			for _, raw := range args {
				l := workflow.Normalize(raw)
				fmt.Fprintf(out, "%q -> %s (%s)\n", raw, l, l.Label())
			}
			return nil
		},
	}
}
