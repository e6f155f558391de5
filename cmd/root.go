package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jamtur01/remeta/internal/api"
	"github.com/jamtur01/remeta/internal/config"
	"github.com/jamtur01/remeta/internal/logging"
)

var (
	jsonOutput  bool
	plainOutput bool
	quietMode   bool
	verbose     bool
	debugFlag   bool
	noInput     bool
	storeDir    string
	hostFlag    string
	apiKeyFlag  string
	timeout     time.Duration
	version     = "dev"
)

var rootCmd = &cobra.Command{
	Use:           "remeta",
	Short:         "Refresh metadata for Jellyfin items",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		handleError(err)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&plainOutput, "plain", false, "Output as plain text")
	rootCmd.PersistentFlags().BoolVarP(&quietMode, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "Debug mode with request/response dumps")
	rootCmd.PersistentFlags().BoolVar(&noInput, "no-input", false, "Disable interactive prompts")
	rootCmd.PersistentFlags().StringVar(&storeDir, "store", "", "Store directory (default: ~/.remeta)")
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "Jellyfin server URL")
	rootCmd.PersistentFlags().StringVar(&apiKeyFlag, "api-key", "", "Jellyfin API key")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "API request timeout")

	cobra.OnInitialize(func() {
		if jsonOutput && plainOutput {
			plainOutput = false
		}
	})
}

type ExitError struct {
	Code int
	Err  error
}

func (e ExitError) Error() string {
	return e.Err.Error()
}

func exitError(code int, err error) error {
	return ExitError{Code: code, Err: err}
}

func handleError(err error) {
	var exit ExitError
	if errors.As(err, &exit) {
		printError("%v\n", exit.Err)
		os.Exit(exit.Code)
	}
	printError("%v\n", err)
	os.Exit(1)
}

func debugMode() bool {
	return debugFlag || os.Getenv("DEBUG") != ""
}

func newLogger() zerolog.Logger {
	return logging.New(logging.Config{Verbose: verbose, Debug: debugMode()})
}

func outputJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func printInfo(format string, args ...interface{}) {
	if !quietMode {
		fmt.Printf(format, args...)
	}
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}

func resolveStoreDir() (string, error) {
	return config.ResolveStoreDir(storeDir)
}

func loadConfig() (*config.Config, string, error) {
	store, err := resolveStoreDir()
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(store)
	if err != nil {
		return nil, "", err
	}
	config.ApplyEnv(cfg)

	if hostFlag != "" {
		cfg.Server = hostFlag
	}
	if apiKeyFlag != "" {
		cfg.APIKey = apiKeyFlag
	}
	if cfg.Server != "" {
		cfg.Server = config.NormalizeServerURL(cfg.Server)
	}

	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
		if cfg.DeviceName == "" {
			cfg.DeviceName = "remeta"
		}
		if err := config.Save(store, cfg); err != nil {
			return nil, "", err
		}
	}

	return cfg, store, nil
}

func getClient(requireKey bool) (*api.Client, *config.Config, string, error) {
	cfg, store, err := loadConfig()
	if err != nil {
		return nil, nil, "", err
	}

	if requireKey {
		if err := cfg.Validate(); err != nil {
			return nil, nil, "", exitError(1, err)
		}
	} else if cfg.Server == "" {
		return nil, nil, "", exitError(1, fmt.Errorf("server is required. Use --host, JELLYFIN_HOST or 'remeta login'"))
	}

	client := api.NewClient(cfg.Server, cfg.APIKey, cfg.DeviceID, cfg.DeviceName, timeout, newLogger(), debugMode())
	return client, cfg, store, nil
}

func promptLine(label, fallback string) string {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return fallback
	}
	return line
}
