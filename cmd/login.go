package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jamtur01/remeta/internal/config"
)

var loginKeyStdin bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the server URL and API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := loadConfig()
		if err != nil {
			return err
		}

		server := cfg.Server
		if server == "" && !noInput {
			server = config.NormalizeServerURL(promptLine("Server URL: ", ""))
		}
		if server == "" {
			return exitError(1, fmt.Errorf("server is required. Use --host or set JELLYFIN_HOST"))
		}

		key := cfg.APIKey
		if apiKeyFlag != "" {
			key = apiKeyFlag
		} else {
			key, err = readAPIKey(loginKeyStdin)
			if err != nil {
				return err
			}
		}
		if key == "" {
			return exitError(1, fmt.Errorf("API key is required"))
		}

		cfg.Server = server
		cfg.APIKey = key
		if err := config.Save(store, cfg); err != nil {
			return err
		}

		// Probe the server so an obvious typo surfaces right away. A warning
		// only: the credentials are already stored.
		client, _, _, err := getClient(true)
		if err == nil {
			if info, err := client.PublicInfo(context.Background()); err == nil {
				printInfo("Connected to %s (Version: %s)\n", info.ServerName, info.Version)
			} else {
				printError("warning: could not verify connection: %v\n", err)
			}
		}

		printInfo("Configuration saved to %s\n", config.ConfigPath(store))
		return nil
	},
}

func init() {
	loginCmd.Flags().BoolVar(&loginKeyStdin, "api-key-stdin", false, "Read API key from stdin")
	rootCmd.AddCommand(loginCmd)
}

func readAPIKey(fromStdin bool) (string, error) {
	if fromStdin {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}
	if noInput {
		return "", exitError(1, fmt.Errorf("API key required; use --api-key or --api-key-stdin"))
	}
	fmt.Print("API key: ")
	key, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(key)), nil
}
