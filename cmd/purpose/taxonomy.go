package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/card-purpose/internal/cli"
)

func taxonomyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "List spending-purpose categories and their keywords",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("rules")
			rs, err := loadRuleset(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("%d categories", rs.Taxonomy().Len())))
			fmt.Fprintln(out, cli.RenderTaxonomy(rs.Taxonomy()))
			if len(rs.Priority) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, cli.TitleStyle.Render("Priority keywords"))
				for _, p := range rs.Priority {
					fmt.Fprintf(out, "  %-16s -> %s\n", p.Keyword, p.Category)
				}
			}
			return nil
		},
	}
	cmd.Flags().String("rules", "", "rules YAML to show instead of the configured one")
	return cmd
}
