package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"go.uber.org/atomic"

	"github.com/tirasundara/ccd-tax-export/internal/domain"
)

const (
	// DefaultPageLimit is the page size requested from the index API.
	DefaultPageLimit = 100
	// DefaultConcurrency bounds how many accounts are paginated at once.
	DefaultConcurrency = 4
	// DefaultMaxRetries bounds the retry budget of a single page fetch.
	DefaultMaxRetries = 5

	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 10 * time.Second
	retryJitterPercent    = 15
)

// Config bounds the retrieval engine. The zero value of any field falls back
// to the package default.
type Config struct {
	PageLimit      int
	Concurrency    int
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

func (c Config) withDefaults() Config {
	if c.PageLimit <= 0 {
		c.PageLimit = DefaultPageLimit
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = defaultRetryBaseDelay
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = defaultRetryMaxDelay
	}
	return c
}

// Stats counts what a retrieval run did. The counters are updated by
// concurrent fetch tasks and read after they have joined.
type Stats struct {
	PagesFetched      atomic.Int64
	TransactionsSeen  atomic.Int64
	DuplicatesDropped atomic.Int64
	Retries           atomic.Int64
}

// Retriever drives per-account pagination, merges the per-account histories
// and deduplicates them into one chronologically ordered transaction sequence.
type Retriever struct {
	fetcher domain.PageFetcher
	cfg     Config
	log     zerolog.Logger
}

// NewRetriever creates a Retriever on top of the given page fetcher.
func NewRetriever(fetcher domain.PageFetcher, cfg Config, log zerolog.Logger) *Retriever {
	return &Retriever{
		fetcher: fetcher,
		cfg:     cfg.withDefaults(),
		log:     log.With().Str("component", "retrieval").Logger(),
	}
}

// accountResult is the outcome of one account's full pagination.
type accountResult struct {
	account      domain.Account
	transactions []domain.RawTransaction
	err          error
}

// RetrieveAll fetches the complete history of every tracked account and
// returns the merged, deduplicated sequence ordered by (block time, hash).
//
// Accounts are fetched concurrently on a bounded pool. A failing account does
// not cancel its siblings, but any failure makes the whole run fail with a
// RetrievalFailedError: a partial tax history must never reach the exporter.
func (r *Retriever) RetrieveAll(ctx context.Context, tracked domain.TrackedAccountSet) ([]domain.RawTransaction, *Stats, error) {
	accounts := tracked.Accounts()
	results := make([]accountResult, len(accounts))
	stats := &Stats{}

	pool := workerpool.New(r.cfg.Concurrency)
	for i, account := range accounts {
		pool.Submit(func() {
			transactions, err := r.fetchAccount(ctx, account, stats)
			results[i] = accountResult{account: account, transactions: transactions, err: err}
		})
	}
	pool.StopWait()

	var failures *multierror.Error
	for _, result := range results {
		if result.err != nil {
			r.log.Error().Err(result.err).Str("account", string(result.account)).Msg("account history incomplete")
			failures = multierror.Append(failures, fmt.Errorf("account %s: %w", result.account, result.err))
		}
	}
	if failures != nil {
		return nil, stats, domain.NewRetrievalFailedError(failures.ErrorOrNil())
	}

	merged := r.merge(results, stats)

	r.log.Info().
		Int("accounts", len(accounts)).
		Int64("pages", stats.PagesFetched.Load()).
		Int64("seen", stats.TransactionsSeen.Load()).
		Int64("duplicates", stats.DuplicatesDropped.Load()).
		Int("merged", len(merged)).
		Msg("retrieval complete")

	return merged, stats, nil
}

// fetchAccount paginates one account's history to end-of-stream. Each page
// call gets its own bounded retry budget with capped, jittered exponential
// backoff; transient errors are retried, fatal ones abort immediately.
func (r *Retriever) fetchAccount(ctx context.Context, account domain.Account, stats *Stats) ([]domain.RawTransaction, error) {
	var history []domain.RawTransaction
	cursor := ""

	for {
		page, err := r.fetchPageWithRetry(ctx, account, cursor, stats)
		if err != nil {
			return nil, err
		}

		history = append(history, page.Transactions...)
		stats.PagesFetched.Inc()
		stats.TransactionsSeen.Add(int64(len(page.Transactions)))

		r.log.Debug().
			Str("account", string(account)).
			Int("page_size", len(page.Transactions)).
			Int("total", len(history)).
			Msg("page accumulated")

		if page.NextCursor == "" {
			return history, nil
		}
		cursor = page.NextCursor
	}
}

func (r *Retriever) fetchPageWithRetry(ctx context.Context, account domain.Account, cursor string, stats *Stats) (domain.TransactionPage, error) {
	backoff := retry.NewExponential(r.cfg.RetryBaseDelay)
	backoff = retry.WithCappedDuration(r.cfg.RetryMaxDelay, backoff)
	backoff = retry.WithJitterPercent(retryJitterPercent, backoff)
	backoff = retry.WithMaxRetries(uint64(r.cfg.MaxRetries), backoff)

	attempt := 0
	var page domain.TransactionPage
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if attempt > 0 {
			stats.Retries.Inc()
			r.log.Debug().
				Str("account", string(account)).
				Str("cursor", cursor).
				Int("attempt", attempt).
				Msg("retrying page fetch")
		}
		attempt++

		var err error
		page, err = r.fetcher.FetchPage(ctx, account, cursor, r.cfg.PageLimit)
		if domain.IsTransientFetchError(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return domain.TransactionPage{}, fmt.Errorf("fetching page after cursor %q: %w", cursor, err)
	}

	return page, nil
}

// merge deduplicates by transaction hash and orders the survivors by block
// time ascending, hash as the deterministic tie-break. Runs single-threaded
// after all fetch tasks have joined, so the seen-set needs no locking.
func (r *Retriever) merge(results []accountResult, stats *Stats) []domain.RawTransaction {
	seen := make(map[string]struct{})
	var merged []domain.RawTransaction

	for _, result := range results {
		for _, tx := range result.transactions {
			if _, ok := seen[tx.Hash]; ok {
				stats.DuplicatesDropped.Inc()
				continue
			}
			seen[tx.Hash] = struct{}{}
			merged = append(merged, tx)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].BlockTime.Equal(merged[j].BlockTime) {
			return merged[i].BlockTime.Before(merged[j].BlockTime)
		}
		return merged[i].Hash < merged[j].Hash
	})

	return merged
}
