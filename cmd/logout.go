package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jamtur01/remeta/internal/config"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := resolveStoreDir()
		if err != nil {
			return err
		}
		cfg, err := config.Load(store)
		if err != nil {
			return err
		}

		cfg.APIKey = ""
		if err := config.Save(store, cfg); err != nil {
			return err
		}

		printInfo("API key removed\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
