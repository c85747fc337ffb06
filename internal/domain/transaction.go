package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TypeTag is the closed transaction-type taxonomy. The index API's free-form
// type strings are mapped into these tags at the client boundary so that
// classification never has to reason about loosely-typed external values.
type TypeTag string

// Transaction type tags
const (
	TagTransfer     TypeTag = "transfer"
	TagReward       TypeTag = "reward"
	TagContractCall TypeTag = "contract-call"
	TagOther        TypeTag = "other"
)

// Status is the execution outcome of a transaction. Failed transactions still
// burn their fee but move no funds.
type Status string

// Transaction outcomes
const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Asset identifies a token together with its native decimal precision, which
// the exporter uses when rendering amounts.
type Asset struct {
	Symbol   string
	Decimals int32
}

// AssetCCD is the chain's native token. Fees are always denominated in it.
var AssetCCD = Asset{Symbol: "CCD", Decimals: 6}

// Entry is a single balance movement inside a transaction: the participant
// account, the signed amount in the asset's human denomination, and the asset.
type Entry struct {
	Account Account
	Amount  decimal.Decimal
	Asset   Asset
}

// RawTransaction is one on-chain transaction as returned by the index API,
// already mapped into the closed domain vocabulary. The hash is globally
// unique within the chain: the same transaction fetched via two different
// accounts' histories carries the same hash.
type RawTransaction struct {
	Hash        string
	BlockHeight uint64
	BlockTime   time.Time
	Tag         TypeTag
	Status      Status
	Entries     []Entry
	Fee         *Entry // nil when the record carries no fee
	Description string
}

// Participants returns the unique accounts appearing in the transaction's
// entries, in order of first appearance. The fee payer is not a participant:
// fee attribution is handled separately from the transfer effect.
func (t RawTransaction) Participants() []Account {
	seen := make(map[Account]struct{}, len(t.Entries))
	participants := make([]Account, 0, len(t.Entries))

	for _, entry := range t.Entries {
		if _, ok := seen[entry.Account]; ok {
			continue
		}
		seen[entry.Account] = struct{}{}
		participants = append(participants, entry.Account)
	}

	return participants
}

// Succeeded reports whether the transaction executed successfully.
func (t RawTransaction) Succeeded() bool {
	return t.Status == StatusSuccess
}
