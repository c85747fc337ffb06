package domain

import "context"

// TransactionPage is one bounded page of an account's transaction history.
// NextCursor is the opaque pagination position to resume from; an empty cursor
// means the account's history is exhausted.
type TransactionPage struct {
	Transactions []RawTransaction
	NextCursor   string
}

// PageFetcher issues a single paged query for transactions involving an
// account, starting after the given cursor. Implementations are stateless
// between calls apart from the cursor they are handed.
//
// Expected errors:
//   - TransientFetchError: the call may be retried
//   - FatalFetchError: the call must not be retried
type PageFetcher interface {
	FetchPage(ctx context.Context, account Account, cursor string, limit int) (TransactionPage, error)
}
