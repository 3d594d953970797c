package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-pidog/pkg/actions"
)

func buildActionsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List the action catalog",
		Long:  "actions prints every action the robot accepts, grouped by category. With --json it prints the function schemas offered to the conversational model.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := actions.Default()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cat.FunctionSchemas())
			}
			return printCatalog(cmd.OutOrStdout(), cat)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print function schemas as JSON")
	return cmd
}

func printCatalog(w io.Writer, cat *actions.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range cat.Categories() {
		fmt.Fprintf(tw, "%s:\n", c.Name)
		for _, a := range c.Actions {
			steps := ""
			if a.Directional {
				steps = "steps"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", a.Name, steps, a.Description)
		}
	}
	return tw.Flush()
}
