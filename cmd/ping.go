package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check connectivity to the Jellyfin server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, _, err := getClient(false)
		if err != nil {
			return err
		}

		info, err := client.PublicInfo(context.Background())
		if err != nil {
			return exitError(1, fmt.Errorf("could not reach %s: %w", cfg.Server, err))
		}

		if jsonOutput {
			outputJSON(info)
			return nil
		}
		printInfo("%s (Version: %s)\n", info.ServerName, info.Version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}
