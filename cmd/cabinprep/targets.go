package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/kiranshivaraju/cabinprep/internal/targets"
	"github.com/spf13/cobra"
)

func newTargetsCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List interview targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			table := targets.Embedded()
			if file != "" {
				loaded, err := targets.Load(file)
				if err != nil {
					return err
				}
				table = loaded
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TARGET\tQUESTIONS")
			for _, t := range table.All() {
				fmt.Fprintf(w, "%s\t%d\n", t.Name, len(t.Questions))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "validate and list a targets YAML file instead of the built-in table")
	return cmd
}
