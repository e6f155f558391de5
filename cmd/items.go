package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamtur01/remeta/internal/api"
	"github.com/jamtur01/remeta/internal/config"
	"github.com/jamtur01/remeta/internal/ui"
)

var (
	itemsType        string
	itemsParent      string
	itemsInteractive bool
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List items matching the configured type filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, _, err := getClient(true)
		if err != nil {
			return err
		}

		types := config.SplitItemTypes(itemsType)
		if len(types) == 0 {
			types = config.SplitItemTypes(cfg.ItemTypes)
		}
		if len(types) == 0 {
			types = []string{"Season"}
		}

		items, err := client.Items(context.Background(), api.ListOptions{
			ParentID:     itemsParent,
			IncludeTypes: types,
		})
		if err != nil {
			return exitError(1, err)
		}

		if itemsInteractive && !noInput {
			entries := make([]ui.Entry, 0, len(items))
			for _, item := range items {
				entries = append(entries, ui.Entry{
					ID:    item.Id,
					Name:  item.Label(),
					Type:  item.Type,
					Extra: item.Path,
				})
			}
			selected, err := ui.PickEntry("Jellyfin Items", entries)
			if err != nil {
				return exitError(1, err)
			}
			fmt.Printf("%s\t%s\t%s\n", selected.ID, selected.Name, selected.Type)
			return nil
		}

		if jsonOutput {
			outputJSON(items)
			return nil
		}
		if plainOutput {
			for _, item := range items {
				fmt.Printf("%s\t%s\t%s\n", item.Id, item.Label(), item.Type)
			}
			return nil
		}

		for _, item := range items {
			fmt.Printf("%s  %s (%s)\n", item.Id, item.Label(), item.Type)
		}
		printInfo("%d items\n", len(items))
		return nil
	},
}

func init() {
	itemsCmd.Flags().StringVar(&itemsType, "type", "", "Comma-separated item types (default: Season)")
	itemsCmd.Flags().StringVar(&itemsParent, "parent", "", "Limit to one library or folder by ID")
	itemsCmd.Flags().BoolVarP(&itemsInteractive, "interactive", "i", false, "Browse items interactively")
	rootCmd.AddCommand(itemsCmd)
}
