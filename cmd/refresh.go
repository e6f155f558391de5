package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamtur01/remeta/internal/api"
)

var (
	refreshModeFlag string
	refreshMeta     bool
	refreshImg      bool
	refreshTrick    bool
)

var refreshCmd = &cobra.Command{
	Use:   "refresh <item-id>",
	Short: "Trigger a metadata refresh for a single item",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, _, err := getClient(true)
		if err != nil {
			return err
		}

		var itemID string
		if len(args) > 0 {
			itemID = args[0]
		} else if !noInput {
			itemID = promptLine("Enter item ID: ", "")
		}
		if itemID == "" {
			return exitError(1, fmt.Errorf("item id required"))
		}

		mode, err := api.ParseRefreshMode(refreshModeFlag)
		if err != nil {
			return exitError(1, err)
		}

		err = client.Refresh(context.Background(), itemID, api.RefreshOptions{
			Mode:                mode,
			ReplaceAllMetadata:  refreshMeta,
			ReplaceAllImages:    refreshImg,
			RegenerateTrickplay: refreshTrick,
		})
		if err != nil {
			return exitError(1, err)
		}

		printInfo("Refresh queued for %s\n", itemID)
		return nil
	},
}

func init() {
	refreshCmd.Flags().StringVar(&refreshModeFlag, "refresh-mode", "", "Refresh mode: None, ValidationOnly, Default, FullRefresh")
	refreshCmd.Flags().BoolVar(&refreshMeta, "replace-all-metadata", false, "Replace all metadata")
	refreshCmd.Flags().BoolVar(&refreshImg, "replace-all-images", false, "Replace all images")
	refreshCmd.Flags().BoolVar(&refreshTrick, "regenerate-trickplay", false, "Regenerate trickplay images")
	rootCmd.AddCommand(refreshCmd)
}
