package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show aggregate statistics across all issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cleanup, err := newClient()
		if err != nil {
			return err
		}
		defer cleanup()

		counts, err := client.Analytics.FetchCategoryCounts(cmd.Context())
		if err != nil {
			return err
		}
		daily, err := client.Analytics.FetchDailySubmissions(cmd.Context())
		if err != nil {
			return err
		}
		voted, err := client.Analytics.FetchMostVoted(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tISSUES\tMOST VOTES")
		top := make(map[string]int, len(voted))
		for _, v := range voted {
			top[v.Category] = v.MaxVotes
		}
		for _, c := range counts {
			fmt.Fprintf(w, "%s\t%d\t%d\n", c.Category, c.Count, top[c.Category])
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "DATE\tSUBMISSIONS")
		for _, d := range daily {
			fmt.Fprintf(w, "%s\t%d\n", d.Date, d.Count)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(analyticsCmd)
}
