package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var statsDate string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show daily productivity and balance stats",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID()
		if err != nil {
			return err
		}
		e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		stats, err := e.Stats.List(cmd.Context(), user, statsDate)
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No stats.")
			return nil
		}

		rows := make([][]string, 0, len(stats))
		for _, st := range stats {
			var tags []string
			for _, tc := range st.TagCounts {
				name := tc.TagName
				if name == "" {
					name = shortID(tc.TagID)
				}
				tags = append(tags, fmt.Sprintf("%s:%d", name, tc.Count))
			}
			rows = append(rows, []string{
				st.Date,
				fmt.Sprintf("%.1f", st.ProductivityScore),
				fmt.Sprintf("%.1f", st.BalanceScore),
				strings.Join(tags, " "),
				st.BalanceNarrative,
			})
		}
		printTable(cmd.OutOrStdout(),
			[]string{"DATE", "PRODUCTIVITY", "BALANCE", "TAGS", "NOTE"}, rows)
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsDate, "date", "", "Date prefix, e.g. 2026-10 or 2026-10-14")
	rootCmd.AddCommand(statsCmd)
}
