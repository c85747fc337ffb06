package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Category is the tax-relevant classification of a transaction.
type Category string

// Categories
const (
	CategoryDeposit          Category = "deposit"
	CategoryWithdrawal       Category = "withdrawal"
	CategoryFee              Category = "fee"
	CategoryReward           Category = "reward"
	CategoryInternalTransfer Category = "internal-transfer"
	CategoryOther            Category = "other"
)

// ClassifiedTransaction is a RawTransaction annotated with its category and
// the per-asset net amount attributable to the tracked account set. Internal
// transfers are marked Excluded rather than dropped, so that callers and tests
// can still observe that they were seen and correctly filtered.
type ClassifiedTransaction struct {
	Tx       RawTransaction
	Category Category

	// Excluded marks transactions that must not produce a primary export row.
	// A tracked fee on an excluded transaction is still reportable.
	Excluded bool

	// Net holds, per asset, the sum of signed entry amounts whose participant
	// is tracked. Failed transactions contribute nothing here.
	Net map[Asset]decimal.Decimal

	// TrackedFee is the transaction's fee entry when its payer is tracked,
	// nil otherwise.
	TrackedFee *Entry

	// Warnings lists invariant violations recovered during classification.
	Warnings []string
}

// NetAssets returns the assets with a nonzero net amount, in lexical symbol
// order for deterministic iteration.
func (c ClassifiedTransaction) NetAssets() []Asset {
	assets := make([]Asset, 0, len(c.Net))
	for asset, amount := range c.Net {
		if amount.IsZero() {
			continue
		}
		assets = append(assets, asset)
	}

	sort.Slice(assets, func(i, j int) bool { return assets[i].Symbol < assets[j].Symbol })
	return assets
}
