package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jamtur01/remeta/internal/api"
	"github.com/jamtur01/remeta/internal/config"
	"github.com/jamtur01/remeta/internal/history"
	"github.com/jamtur01/remeta/internal/refresh"
	"github.com/jamtur01/remeta/internal/ui"
)

var (
	runBatchSize    int
	runDelay        time.Duration
	runRefreshMode  string
	runReplaceMeta  bool
	runReplaceImg   bool
	runTrickplay    bool
	runItemTypes    string
	runParent       string
	runChooseParent bool
	runMaxRetries   int
	runOnce         bool
	runInterval     int
	runNoHistory    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Refresh metadata for matching items, once or periodically",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, store, err := getClient(true)
		if err != nil {
			return err
		}
		log := newLogger()

		mode, err := api.ParseRefreshMode(resolveRefreshMode(cfg))
		if err != nil {
			return exitError(1, err)
		}

		itemTypes := config.SplitItemTypes(runItemTypes)
		if len(itemTypes) == 0 {
			itemTypes = config.SplitItemTypes(cfg.ItemTypes)
		}
		if len(itemTypes) == 0 {
			itemTypes = []string{"Season"}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		parent := runParent
		if parent == "" && runChooseParent && !noInput {
			parent, err = chooseParentLibrary(ctx, client)
			if err != nil {
				return err
			}
		}

		refresher := refresh.New(client, log, refresh.Options{
			Mode:                mode,
			ReplaceAllMetadata:  runReplaceMeta,
			ReplaceAllImages:    runReplaceImg,
			RegenerateTrickplay: runTrickplay,
			ItemTypes:           itemTypes,
			ParentID:            parent,
			Delay:               runDelay,
			BatchSize:           runBatchSize,
			MaxRetries:          runMaxRetries,
		})

		log.Info().Str("server", cfg.Server).Msg("initialized metadata refresher")
		refresher.VerifyConnection(ctx)

		once := runOnce || os.Getenv("RUN_ONCE") != ""
		interval := resolveInterval(cmd, log)

		if once {
			err := runPass(ctx, refresher, cfg, store, log)
			if ctx.Err() != nil {
				log.Info().Msg("interrupt received, exiting")
				return nil
			}
			return err
		}

		log.Info().Int("minutes", interval).Msg("running in periodic mode")
		for {
			if err := runPass(ctx, refresher, cfg, store, log); err != nil {
				if ctx.Err() != nil {
					log.Info().Msg("interrupt received, exiting")
					return nil
				}
				return err
			}

			log.Info().Int("minutes", interval).Msg("waiting until the next refresh")
			select {
			case <-ctx.Done():
				log.Info().Msg("interrupt received, exiting")
				return nil
			case <-time.After(time.Duration(interval) * time.Minute):
			}
		}
	},
}

func init() {
	runCmd.Flags().IntVar(&runBatchSize, "batch-size", refresh.DefaultBatchSize, "Refresh requests in flight at once (1 = sequential)")
	runCmd.Flags().DurationVar(&runDelay, "delay", time.Second, "Delay between refresh requests")
	runCmd.Flags().StringVar(&runRefreshMode, "refresh-mode", "", "Refresh mode: None, ValidationOnly, Default, FullRefresh")
	runCmd.Flags().BoolVar(&runReplaceMeta, "replace-all-metadata", false, "Replace all metadata")
	runCmd.Flags().BoolVar(&runReplaceImg, "replace-all-images", false, "Replace all images")
	runCmd.Flags().BoolVar(&runTrickplay, "regenerate-trickplay", false, "Regenerate trickplay images")
	runCmd.Flags().StringVar(&runItemTypes, "item-types", "", "Comma-separated item types to refresh (default: Season)")
	runCmd.Flags().StringVar(&runParent, "parent", "", "Limit to one library or folder by ID")
	runCmd.Flags().BoolVar(&runChooseParent, "choose-parent", false, "Pick the library interactively")
	runCmd.Flags().IntVar(&runMaxRetries, "max-retries", refresh.DefaultMaxRetries, "Retry rounds for failed items")
	runCmd.Flags().BoolVar(&runOnce, "run-once", false, "Run once and exit (default is to run periodically)")
	runCmd.Flags().IntVar(&runInterval, "interval", 30, "Minutes between refresh runs")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Do not record the pass in the local history store")
	rootCmd.AddCommand(runCmd)
}

func resolveRefreshMode(cfg *config.Config) string {
	if runRefreshMode != "" {
		return runRefreshMode
	}
	return cfg.RefreshMode
}

// resolveInterval applies REFRESH_INTERVAL when the flag was left at its
// default. Zero or garbage in the environment keeps the default.
func resolveInterval(cmd *cobra.Command, log zerolog.Logger) int {
	interval := runInterval
	if env := os.Getenv("REFRESH_INTERVAL"); env != "" && !cmd.Flags().Changed("interval") {
		parsed, err := strconv.Atoi(env)
		if err != nil || parsed <= 0 {
			log.Warn().Str("value", env).Msg("invalid REFRESH_INTERVAL in environment, using default")
		} else {
			interval = parsed
		}
	}
	return interval
}

func runPass(ctx context.Context, refresher *refresh.Refresher, cfg *config.Config, store string, log zerolog.Logger) error {
	log.Info().Msg("starting metadata refresh process")
	start := time.Now()

	res, err := refresher.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	log.Info().
		Dur("elapsed", elapsed).
		Int("success", res.Success).
		Msg("metadata refresh completed")
	if res.Skipped > 0 {
		log.Info().Int("skipped", res.Skipped).Msg("skipped items")
	}
	if res.Failed > 0 {
		log.Warn().Int("failed", res.Failed).Msg("failed to refresh items")
	} else {
		log.Info().Msg("all items were refreshed successfully")
	}

	if !runNoHistory {
		recordPass(cfg, store, start, elapsed, res, log)
	}
	return nil
}

// recordPass is best effort: history failures never fail the run.
func recordPass(cfg *config.Config, store string, start time.Time, elapsed time.Duration, res refresh.Result, log zerolog.Logger) {
	st, err := history.Open(store)
	if err != nil {
		log.Warn().Err(err).Msg("could not open history store")
		return
	}
	defer st.Close()

	_, err = st.RecordPass(history.Pass{
		Server:     cfg.Server,
		StartedAt:  start,
		FinishedAt: start.Add(elapsed),
		Success:    res.Success,
		Failed:     res.Failed,
		Skipped:    res.Skipped,
	})
	if err != nil {
		log.Warn().Err(err).Msg("could not record pass in history store")
	}
}

func chooseParentLibrary(ctx context.Context, client *api.Client) (string, error) {
	folders, err := client.MediaFolders(ctx)
	if err != nil {
		return "", exitError(1, fmt.Errorf("listing media folders: %w", err))
	}
	if len(folders) == 0 {
		return "", exitError(1, fmt.Errorf("no libraries available"))
	}

	labels := make([]string, len(folders))
	for i, f := range folders {
		labels[i] = f.Name
	}
	idx, err := ui.PromptSelect("Select library:", labels)
	if err != nil {
		return "", exitError(1, err)
	}
	return folders[idx].Id, nil
}
