// Package refresh drives the metadata refresh workflow: list catalog items,
// trigger a refresh on each and retry the failures a bounded number of
// rounds.
package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jamtur01/remeta/internal/api"
)

const (
	// DefaultMaxRetries is the number of retry rounds over the failed set.
	DefaultMaxRetries = 3

	// DefaultBatchSize keeps dispatch fully sequential.
	DefaultBatchSize = 1
)

// seasonType is the hardcoded pre-filter applied on top of the server-side
// type filter. Items of any other type never reach the skip check. Kept from
// the original narrowing of scope; callers depend on it.
const seasonType = "Season"

type Options struct {
	Mode                api.RefreshMode
	ReplaceAllMetadata  bool
	ReplaceAllImages    bool
	RegenerateTrickplay bool

	// ItemTypes is the configured type filter, sent to the server and
	// re-checked per item. Empty disables the per-item skip check.
	ItemTypes []string

	// ParentID optionally scopes listing to one library.
	ParentID string

	// Delay is the minimum spacing between refresh requests.
	Delay time.Duration

	// BatchSize > 1 dispatches refresh calls through a bounded worker pool.
	// Request starts remain paced by Delay.
	BatchSize int

	// MaxRetries is the number of retry rounds for failed items.
	MaxRetries int
}

// Result aggregates one pass. Success counts every successful attempt
// including retries; Failed counts items that exhausted all rounds.
type Result struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

type Refresher struct {
	client  *api.Client
	log     zerolog.Logger
	opts    Options
	limiter *rate.Limiter
}

func New(client *api.Client, log zerolog.Logger, opts Options) *Refresher {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Refresher{
		client:  client,
		log:     log,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(opts.Delay), 1),
	}
}

// VerifyConnection probes the server's public info endpoint. Failure is a
// warning, not an error: the server may still accept authenticated calls.
func (r *Refresher) VerifyConnection(ctx context.Context) {
	info, err := r.client.PublicInfo(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("could not verify connection to the server")
		r.log.Warn().Msg("proceeding anyway; this may indicate a problem with the server URL or network")
		return
	}
	r.log.Info().
		Str("server", info.ServerName).
		Str("version", info.Version).
		Msg("connected to server")
}

// Run performs one full pass: list, refresh, retry. Failures never abort the
// pass; they end up in the counters. The returned error is non-nil only when
// ctx was cancelled mid-pass.
func (r *Refresher) Run(ctx context.Context) (Result, error) {
	var res Result

	items, err := r.client.Items(ctx, api.ListOptions{
		ParentID:     r.opts.ParentID,
		IncludeTypes: r.opts.ItemTypes,
	})
	if err != nil {
		r.logListErr(err)
		return res, ctx.Err()
	}

	seasons := items[:0:0]
	for _, item := range items {
		if item.Type != seasonType {
			r.log.Debug().
				Str("item", item.Name).
				Str("type", item.Type).
				Msg("filtering out non-Season item")
			continue
		}
		seasons = append(seasons, item)
	}

	if len(seasons) == 0 {
		r.log.Warn().Msg("no Season items found to refresh; check your server connection and user permissions")
		return res, ctx.Err()
	}
	r.log.Info().Int("count", len(seasons)).Msg("found Season items to refresh")

	typeSet := make(map[string]struct{}, len(r.opts.ItemTypes))
	for _, t := range r.opts.ItemTypes {
		typeSet[t] = struct{}{}
	}

	eligible := seasons[:0:0]
	for _, item := range seasons {
		if len(typeSet) > 0 {
			if _, ok := typeSet[item.Type]; !ok {
				r.log.Debug().
					Str("item", item.Label()).
					Str("type", item.Type).
					Str("id", item.Id).
					Msg("skipping item outside configured types")
				res.Skipped++
				continue
			}
		}
		eligible = append(eligible, item)
	}

	succeeded, failed := r.attempt(ctx, eligible, 0)
	res.Success += succeeded

	if len(failed) > 0 && ctx.Err() == nil {
		r.log.Info().Int("count", len(failed)).Msg("retrying failed items")
	}
	for round := 1; round <= r.opts.MaxRetries && len(failed) > 0 && ctx.Err() == nil; round++ {
		r.log.Info().
			Int("attempt", round).
			Int("of", r.opts.MaxRetries).
			Msg("retry attempt")

		succeeded, failed = r.attempt(ctx, failed, round)
		res.Success += succeeded
		if len(failed) == 0 {
			r.log.Info().Msg("all retries successful")
		}
	}

	res.Failed = len(failed)
	if len(failed) > 0 {
		r.log.Warn().
			Int("count", len(failed)).
			Int("retries", r.opts.MaxRetries).
			Msg("items still failing after all retries")
		for _, item := range failed {
			r.log.Warn().
				Str("type", item.Type).
				Str("item", item.Label()).
				Str("id", item.Id).
				Msg("failed to refresh")
		}
	}

	return res, ctx.Err()
}

// attempt refreshes every item once, in order, paced by the limiter. It
// returns the success count and the items still failing. round 0 is the
// initial pass; later rounds only change the log wording.
func (r *Refresher) attempt(ctx context.Context, items []api.Item, round int) (int, []api.Item) {
	if len(items) == 0 {
		return 0, nil
	}
	if r.opts.BatchSize > 1 {
		return r.attemptPool(ctx, items, round)
	}

	total := len(items)
	succeeded := 0
	var failed []api.Item
	for i, item := range items {
		if err := r.limiter.Wait(ctx); err != nil {
			failed = append(failed, items[i:]...)
			return succeeded, failed
		}
		if r.refreshOne(ctx, item, i+1, total, round) {
			succeeded++
		} else {
			failed = append(failed, item)
		}
	}
	return succeeded, failed
}

// attemptPool is the bounded-concurrency variant. Request starts are still
// paced by the limiter; only in-flight requests overlap. The failed list
// preserves the input order.
func (r *Refresher) attemptPool(ctx context.Context, items []api.Item, round int) (int, []api.Item) {
	total := len(items)
	ok := make([]bool, total)

	var wg sync.WaitGroup
	sem := make(chan struct{}, r.opts.BatchSize)

	for i := range items {
		if err := r.limiter.Wait(ctx); err != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			ok[i] = r.refreshOne(ctx, items[i], i+1, total, round)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	var failed []api.Item
	for i, item := range items {
		if ok[i] {
			succeeded++
		} else {
			failed = append(failed, item)
		}
	}
	return succeeded, failed
}

func (r *Refresher) refreshOne(ctx context.Context, item api.Item, index, total, round int) bool {
	ev := r.log.Info().
		Int("index", index).
		Int("total", total).
		Str("type", item.Type).
		Str("item", item.Label()).
		Str("id", item.Id)
	if round > 0 {
		ev.Msg("retrying item")
	} else {
		ev.Msg("refreshing item")
	}

	err := r.client.Refresh(ctx, item.Id, api.RefreshOptions{
		Mode:                r.opts.Mode,
		ReplaceAllMetadata:  r.opts.ReplaceAllMetadata,
		ReplaceAllImages:    r.opts.ReplaceAllImages,
		RegenerateTrickplay: r.opts.RegenerateTrickplay,
	})
	if err != nil {
		r.logRefreshErr(item, err)
		return false
	}

	if round > 0 {
		r.log.Info().Str("item", item.Label()).Msg("successfully refreshed on retry")
	} else {
		r.log.Info().Str("item", item.Label()).Msg("successfully refreshed")
	}
	return true
}

func (r *Refresher) logRefreshErr(item api.Item, err error) {
	log := r.log.With().Str("item", item.Label()).Str("id", item.Id).Logger()
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		log.Error().Msg("authentication error (401) when refreshing; check your API key")
	case errors.Is(err, api.ErrNotFound):
		log.Error().Msg("item not found (404) when refreshing")
	case api.IsTimeout(err):
		log.Error().Msg("timeout when refreshing; the server might be busy")
	case api.IsConnectionError(err):
		log.Error().Msg("connection error when refreshing; check your network and server URL")
	default:
		log.Error().Err(err).Msg("error refreshing item")
	}
}

func (r *Refresher) logListErr(err error) {
	var wall *api.AuthWallError
	if errors.As(err, &wall) {
		r.log.Error().Msg("received HTML instead of JSON; the request is being redirected to an authentication page")
		r.log.Error().Msg("this usually means the API key is invalid or a reverse proxy is intercepting the request")
		if wall.LoginURL != "" {
			r.log.Error().Str("url", wall.LoginURL).Msg("authentication system detected")
		}
		return
	}
	r.log.Error().Err(err).Msg("error getting items")
}
