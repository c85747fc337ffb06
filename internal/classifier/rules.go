package classifier

import (
	"github.com/shopspring/decimal"

	"github.com/tirasundara/ccd-tax-export/internal/domain"
)

// evaluation carries the facts derived from one transaction that the category
// rules decide on.
type evaluation struct {
	tx         domain.RawTransaction
	tracked    domain.TrackedAccountSet
	net        map[domain.Asset]decimal.Decimal
	nonzero    []domain.Asset
	trackedFee *domain.Entry
}

// classificationRule inspects a transaction and either claims it with a
// category or passes it on to the next rule.
type classificationRule func(ev evaluation) (domain.Category, bool)

// classificationRules are applied in order; the first rule that claims a
// transaction decides its category. Transactions no rule claims fall back to
// Other.
var classificationRules = []classificationRule{
	internalTransferRule,
	rewardRule,
	depositRule,
	withdrawalRule,
	feeOnlyRule,
}

// internalTransferRule claims transactions that move value between tracked
// accounts only. The fee payer is not a participant, so an internal transfer
// still yields a reportable fee when a tracked account paid it.
func internalTransferRule(ev evaluation) (domain.Category, bool) {
	participants := ev.tx.Participants()
	if len(participants) == 0 {
		return "", false
	}
	if !ev.tracked.ContainsAll(participants) {
		return "", false
	}

	// A transfer has both a sender and a receiver side. A lone credit, such
	// as a staking reward paid by the chain itself, is not one even though
	// its only participant is tracked.
	var hasSender, hasReceiver bool
	for _, entry := range ev.tx.Entries {
		if entry.Amount.IsNegative() {
			hasSender = true
		}
		if entry.Amount.IsPositive() {
			hasReceiver = true
		}
	}
	if !hasSender || !hasReceiver {
		return "", false
	}

	return domain.CategoryInternalTransfer, true
}

// rewardRule claims reward-tagged transactions that credit a tracked account.
func rewardRule(ev evaluation) (domain.Category, bool) {
	if ev.tx.Tag != domain.TagReward || !ev.tx.Succeeded() {
		return "", false
	}

	for _, entry := range ev.tx.Entries {
		if entry.Amount.IsPositive() && ev.tracked.Contains(entry.Account) {
			return domain.CategoryReward, true
		}
	}

	return "", false
}

// depositRule claims transactions whose tracked net effect is a single asset
// strictly received.
func depositRule(ev evaluation) (domain.Category, bool) {
	if len(ev.nonzero) != 1 {
		return "", false
	}
	if !ev.net[ev.nonzero[0]].IsPositive() {
		return "", false
	}

	return domain.CategoryDeposit, true
}

// withdrawalRule claims transactions whose tracked net effect is a single
// asset strictly sent.
func withdrawalRule(ev evaluation) (domain.Category, bool) {
	if len(ev.nonzero) != 1 {
		return "", false
	}
	if !ev.net[ev.nonzero[0]].IsNegative() {
		return "", false
	}

	return domain.CategoryWithdrawal, true
}

// feeOnlyRule claims transactions whose only tracked effect is the fee, which
// covers failed transactions and zero-net contract interactions.
func feeOnlyRule(ev evaluation) (domain.Category, bool) {
	if len(ev.nonzero) != 0 || ev.trackedFee == nil {
		return "", false
	}

	return domain.CategoryFee, true
}

// trackedNet sums signed entry amounts per asset across the entries whose
// participant is tracked. Failed transactions contribute nothing; their fee
// is attributed separately.
func trackedNet(tx domain.RawTransaction, tracked domain.TrackedAccountSet) map[domain.Asset]decimal.Decimal {
	net := make(map[domain.Asset]decimal.Decimal)
	if !tx.Succeeded() {
		return net
	}

	for _, entry := range tx.Entries {
		// Malformed entries are reported as violations, not summed.
		if entry.Account == "" || entry.Asset.Symbol == "" {
			continue
		}
		if !tracked.Contains(entry.Account) {
			continue
		}

		net[entry.Asset] = net[entry.Asset].Add(entry.Amount)
	}

	return net
}

// attributableFee returns the transaction's fee entry when a tracked account
// paid a nonzero fee, nil otherwise.
func attributableFee(tx domain.RawTransaction, tracked domain.TrackedAccountSet) *domain.Entry {
	fee := tx.Fee
	if fee == nil || fee.Account == "" || fee.Amount.IsZero() {
		return nil
	}
	if !tracked.Contains(fee.Account) {
		return nil
	}

	return fee
}

// structuralViolations checks the participant data of a succeeded transaction
// for inconsistencies that would corrupt net-amount computation. Failed
// transactions are skipped since their entries carry no net effect.
func structuralViolations(tx domain.RawTransaction) []error {
	if !tx.Succeeded() {
		return nil
	}

	var violations []error
	for i, entry := range tx.Entries {
		switch {
		case entry.Account == "":
			violations = append(violations, domain.NewInvariantViolationErrorf(tx.Hash, "entry %d has no participant account", i))
		case entry.Asset.Symbol == "":
			violations = append(violations, domain.NewInvariantViolationErrorf(tx.Hash, "entry %d has no asset symbol", i))
		case entry.Amount.IsZero():
			violations = append(violations, domain.NewInvariantViolationErrorf(tx.Hash, "entry %d has no amount", i))
		}
	}

	if (tx.Tag == domain.TagTransfer || tx.Tag == domain.TagReward) && len(tx.Entries) == 0 && tx.Fee == nil {
		violations = append(violations, domain.NewInvariantViolationErrorf(tx.Hash, "%s transaction carries no entries and no fee", tx.Tag))
	}

	return violations
}
