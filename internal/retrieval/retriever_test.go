package retrieval_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tirasundara/ccd-tax-export/internal/domain"
	"github.com/tirasundara/ccd-tax-export/internal/retrieval"
)

const (
	accountA = domain.Account("3XSLuJcXg6xEua6iBPnWacc3iWh93yEDMCqX8FbE3RDSbEnT9P")
	accountB = domain.Account("4AnukgcopMC4crxfL1L9fUYw9MTkSM3y8Z8i7i7AV98vWdPy9X")
	outsider = domain.Account("4ekSg2fq7ZjBmDcVbC8kYqmpvJDumTBcnW7rZQXVzCCPL6KWAP")
)

var baseTime = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

// fixtureFetcher serves canned per-account histories with index-based cursors
// and can be scripted to fail.
type fixtureFetcher struct {
	mu             sync.Mutex
	histories      map[domain.Account][]domain.RawTransaction
	transientFails map[domain.Account]int
	fatalAccounts  map[domain.Account]bool
	calls          int
}

func (f *fixtureFetcher) FetchPage(ctx context.Context, account domain.Account, cursor string, limit int) (domain.TransactionPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++

	if f.fatalAccounts[account] {
		return domain.TransactionPage{}, domain.NewFatalFetchErrorf("account %s rejected", account)
	}

	if remaining := f.transientFails[account]; remaining > 0 {
		f.transientFails[account] = remaining - 1
		return domain.TransactionPage{}, domain.NewTransientFetchErrorf("connection reset")
	}

	history := f.histories[account]

	start := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil {
			return domain.TransactionPage{}, domain.NewFatalFetchErrorf("bad cursor %q", cursor)
		}
		start = parsed
	}

	end := start + limit
	if end > len(history) {
		end = len(history)
	}

	page := domain.TransactionPage{Transactions: history[start:end]}
	if end-start >= limit {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

func transferTx(hash string, offset time.Duration, from, to domain.Account, amount string) domain.RawTransaction {
	value := decimal.RequireFromString(amount)
	return domain.RawTransaction{
		Hash:      hash,
		BlockTime: baseTime.Add(offset),
		Tag:       domain.TagTransfer,
		Status:    domain.StatusSuccess,
		Entries: []domain.Entry{
			{Account: from, Amount: value.Neg(), Asset: domain.AssetCCD},
			{Account: to, Amount: value, Asset: domain.AssetCCD},
		},
		Fee: &domain.Entry{Account: from, Amount: decimal.RequireFromString("0.000165"), Asset: domain.AssetCCD},
	}
}

func fastConfig() retrieval.Config {
	return retrieval.Config{
		PageLimit:      2,
		Concurrency:    2,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  5 * time.Millisecond,
	}
}

func trackedSet(t *testing.T, accounts ...domain.Account) domain.TrackedAccountSet {
	t.Helper()
	set, err := domain.NewTrackedAccountSet(accounts...)
	require.NoError(t, err)
	return set
}

func hashes(txs []domain.RawTransaction) []string {
	result := make([]string, len(txs))
	for i, tx := range txs {
		result[i] = tx.Hash
	}
	return result
}

func TestRetrieveAll_DeduplicatesAcrossAccounts(t *testing.T) {
	// The A→B transfer is visible from both tracked histories but must be
	// retained exactly once.
	shared := transferTx("cc33", 2*time.Minute, accountA, accountB, "25")
	fetcher := &fixtureFetcher{
		histories: map[domain.Account][]domain.RawTransaction{
			accountA: {
				transferTx("aa11", 1*time.Minute, accountA, outsider, "10"),
				shared,
			},
			accountB: {
				shared,
				transferTx("bb22", 3*time.Minute, outsider, accountB, "5"),
			},
		},
	}

	r := retrieval.NewRetriever(fetcher, fastConfig(), zerolog.Nop())
	merged, stats, err := r.RetrieveAll(context.Background(), trackedSet(t, accountA, accountB))
	require.NoError(t, err)

	assert.Equal(t, []string{"aa11", "cc33", "bb22"}, hashes(merged))
	assert.Equal(t, int64(1), stats.DuplicatesDropped.Load())
	assert.Equal(t, int64(4), stats.TransactionsSeen.Load())
}

func TestRetrieveAll_OrdersByTimeThenHash(t *testing.T) {
	tied := baseTime.Add(time.Minute)
	txLate := transferTx("ff66", 2*time.Minute, accountA, outsider, "1")
	txTieHigh := transferTx("bb22", 0, accountA, outsider, "2")
	txTieLow := transferTx("aa11", 0, outsider, accountB, "3")
	txTieHigh.BlockTime = tied
	txTieLow.BlockTime = tied

	fetcher := &fixtureFetcher{
		histories: map[domain.Account][]domain.RawTransaction{
			// Deliberately unsorted per account: arrival order must not matter.
			accountA: {txLate, txTieHigh},
			accountB: {txTieLow},
		},
	}

	r := retrieval.NewRetriever(fetcher, fastConfig(), zerolog.Nop())
	merged, _, err := r.RetrieveAll(context.Background(), trackedSet(t, accountA, accountB))
	require.NoError(t, err)

	assert.Equal(t, []string{"aa11", "bb22", "ff66"}, hashes(merged),
		"equal timestamps must fall back to lexical hash order")
}

func TestRetrieveAll_RetryTransparency(t *testing.T) {
	// First call fails transiently; the retried run must still produce the
	// complete ordered set.
	fetcher := &fixtureFetcher{
		histories: map[domain.Account][]domain.RawTransaction{
			accountA: {
				transferTx("aa11", 1*time.Minute, accountA, outsider, "10"),
				transferTx("bb22", 2*time.Minute, outsider, accountA, "4"),
				transferTx("cc33", 3*time.Minute, accountA, outsider, "6"),
			},
		},
		transientFails: map[domain.Account]int{accountA: 1},
	}

	r := retrieval.NewRetriever(fetcher, fastConfig(), zerolog.Nop())
	merged, stats, err := r.RetrieveAll(context.Background(), trackedSet(t, accountA))
	require.NoError(t, err)

	assert.Equal(t, []string{"aa11", "bb22", "cc33"}, hashes(merged))
	assert.Equal(t, int64(1), stats.Retries.Load())
}

func TestRetrieveAll_PaginationTransparency(t *testing.T) {
	history := []domain.RawTransaction{
		transferTx("aa11", 1*time.Minute, accountA, outsider, "1"),
		transferTx("bb22", 2*time.Minute, accountA, outsider, "2"),
		transferTx("cc33", 3*time.Minute, accountA, outsider, "3"),
		transferTx("dd44", 4*time.Minute, accountA, outsider, "4"),
		transferTx("ee55", 5*time.Minute, accountA, outsider, "5"),
	}

	fetchWithLimit := func(limit int) []domain.RawTransaction {
		fetcher := &fixtureFetcher{histories: map[domain.Account][]domain.RawTransaction{accountA: history}}
		cfg := fastConfig()
		cfg.PageLimit = limit

		r := retrieval.NewRetriever(fetcher, cfg, zerolog.Nop())
		merged, _, err := r.RetrieveAll(context.Background(), trackedSet(t, accountA))
		require.NoError(t, err)
		return merged
	}

	small := fetchWithLimit(2)  // forces three pages
	large := fetchWithLimit(50) // everything in one page

	assert.Equal(t, large, small, "page size must not change the merged result")
}

func TestRetrieveAll_TransientBudgetExhausted(t *testing.T) {
	fetcher := &fixtureFetcher{
		histories:      map[domain.Account][]domain.RawTransaction{accountA: nil, accountB: nil},
		transientFails: map[domain.Account]int{accountA: 100}, // never recovers
	}

	r := retrieval.NewRetriever(fetcher, fastConfig(), zerolog.Nop())
	merged, _, err := r.RetrieveAll(context.Background(), trackedSet(t, accountA, accountB))

	require.Error(t, err)
	assert.Nil(t, merged, "no partial result may escape a failed run")
	assert.True(t, domain.IsRetrievalFailedError(err))
	assert.True(t, domain.IsTransientFetchError(err), "the cause chain must surface the underlying failure")
	assert.Contains(t, err.Error(), string(accountA))
}

func TestRetrieveAll_FatalAbortsWithoutRetry(t *testing.T) {
	fetcher := &fixtureFetcher{
		histories:     map[domain.Account][]domain.RawTransaction{accountA: nil},
		fatalAccounts: map[domain.Account]bool{accountA: true},
	}

	r := retrieval.NewRetriever(fetcher, fastConfig(), zerolog.Nop())
	_, stats, err := r.RetrieveAll(context.Background(), trackedSet(t, accountA))

	require.Error(t, err)
	assert.True(t, domain.IsRetrievalFailedError(err))
	assert.True(t, domain.IsFatalFetchError(err))
	assert.Equal(t, int64(0), stats.Retries.Load(), "fatal errors must not be retried")
	assert.Equal(t, 1, fetcher.calls)
}

func TestRetrieveAll_SiblingAccountsCompleteOnFailure(t *testing.T) {
	// Account A fails fatally; account B's pagination still runs to
	// completion for diagnostics, but the run as a whole fails.
	fetcher := &fixtureFetcher{
		histories: map[domain.Account][]domain.RawTransaction{
			accountA: nil,
			accountB: {
				transferTx("aa11", time.Minute, outsider, accountB, "1"),
				transferTx("bb22", 2*time.Minute, outsider, accountB, "2"),
				transferTx("cc33", 3*time.Minute, outsider, accountB, "3"),
			},
		},
		fatalAccounts: map[domain.Account]bool{accountA: true},
	}

	r := retrieval.NewRetriever(fetcher, fastConfig(), zerolog.Nop())
	merged, stats, err := r.RetrieveAll(context.Background(), trackedSet(t, accountA, accountB))

	require.Error(t, err)
	assert.Nil(t, merged)
	// One fatal call for A, two pages for B (page limit 2 over 3 records).
	assert.Equal(t, 3, fetcher.calls)
	assert.Equal(t, int64(3), stats.TransactionsSeen.Load())
}

func TestRetrieveAll_Deterministic(t *testing.T) {
	build := func() *fixtureFetcher {
		return &fixtureFetcher{
			histories: map[domain.Account][]domain.RawTransaction{
				accountA: {
					transferTx("aa11", 1*time.Minute, accountA, outsider, "10"),
					transferTx("cc33", 2*time.Minute, accountA, accountB, "25"),
				},
				accountB: {
					transferTx("cc33", 2*time.Minute, accountA, accountB, "25"),
					transferTx("bb22", 3*time.Minute, outsider, accountB, "5"),
				},
			},
		}
	}

	cfg := fastConfig()
	r1 := retrieval.NewRetriever(build(), cfg, zerolog.Nop())
	r2 := retrieval.NewRetriever(build(), cfg, zerolog.Nop())

	set := trackedSet(t, accountA, accountB)
	first, _, err := r1.RetrieveAll(context.Background(), set)
	require.NoError(t, err)
	second, _, err := r2.RetrieveAll(context.Background(), set)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
