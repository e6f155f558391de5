package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamtur01/remeta/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past refresh passes",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := resolveStoreDir()
		if err != nil {
			return err
		}

		st, err := history.Open(store)
		if err != nil {
			return exitError(1, err)
		}
		defer st.Close()

		passes, err := st.ListPasses(historyLimit)
		if err != nil {
			return exitError(1, err)
		}

		if jsonOutput {
			outputJSON(passes)
			return nil
		}
		if len(passes) == 0 {
			printInfo("No passes recorded yet\n")
			return nil
		}

		for _, p := range passes {
			fmt.Printf("%s  %s  success=%d failed=%d skipped=%d (%s)\n",
				p.StartedAt.Local().Format(time.RFC3339),
				p.Server,
				p.Success,
				p.Failed,
				p.Skipped,
				p.Duration().Round(time.Second),
			)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Max passes to show (0 = all)")
	rootCmd.AddCommand(historyCmd)
}
