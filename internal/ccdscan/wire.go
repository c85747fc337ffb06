package ccdscan

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tirasundara/ccd-tax-export/internal/domain"
)

// transactionsResponse is the body of
// GET /v1/accounts/{address}/transactions?limit=N[&from=cursor].
type transactionsResponse struct {
	Count        int               `json:"count"`
	Limit        int               `json:"limit"`
	Order        string            `json:"order"`
	Transactions []wireTransaction `json:"transactions"`
}

// wireTransaction is one transaction record as the API serializes it. The id
// is a per-account monotonic index used only for pagination; identity across
// accounts is the transaction hash.
type wireTransaction struct {
	ID              int64       `json:"id"`
	TransactionHash string      `json:"transactionHash"`
	BlockHash       string      `json:"blockHash"`
	BlockHeight     uint64      `json:"blockHeight"`
	BlockTime       float64     `json:"blockTime"` // unix seconds, may be fractional
	Type            string      `json:"type"`
	Outcome         string      `json:"outcome"`
	Description     string      `json:"description,omitempty"`
	Entries         []wireEntry `json:"entries"`
	Fee             *wireEntry  `json:"fee,omitempty"`
}

// wireEntry is one balance movement: amounts are signed base-unit integers
// encoded as strings, with the token's decimal precision alongside.
type wireEntry struct {
	Account  string `json:"account"`
	Amount   string `json:"amount"`
	Token    string `json:"token"`
	Decimals *int32 `json:"tokenDecimals,omitempty"`
}

// mapPage converts a decoded response into a domain page. A page shorter than
// the requested limit ends the stream; otherwise the next cursor is the id of
// the page's last record.
func mapPage(resp transactionsResponse, limit int) (domain.TransactionPage, error) {
	transactions := make([]domain.RawTransaction, 0, len(resp.Transactions))
	for _, wire := range resp.Transactions {
		tx, err := mapTransaction(wire)
		if err != nil {
			return domain.TransactionPage{}, err
		}
		transactions = append(transactions, tx)
	}

	nextCursor := ""
	if len(resp.Transactions) >= limit && len(resp.Transactions) > 0 {
		nextCursor = strconv.FormatInt(resp.Transactions[len(resp.Transactions)-1].ID, 10)
	}

	return domain.TransactionPage{Transactions: transactions, NextCursor: nextCursor}, nil
}

func mapTransaction(wire wireTransaction) (domain.RawTransaction, error) {
	if wire.TransactionHash == "" {
		return domain.RawTransaction{}, domain.NewFatalFetchErrorf("transaction record %d has no hash", wire.ID)
	}
	if wire.BlockTime <= 0 {
		return domain.RawTransaction{}, domain.NewFatalFetchErrorf("transaction %s has no block time", wire.TransactionHash)
	}

	entries := make([]domain.Entry, 0, len(wire.Entries))
	for i, wireEnt := range wire.Entries {
		entry, err := mapEntry(wireEnt)
		if err != nil {
			return domain.RawTransaction{}, domain.NewFatalFetchErrorf(
				"transaction %s entry %d: %w", wire.TransactionHash, i, err)
		}
		entries = append(entries, entry)
	}

	var fee *domain.Entry
	if wire.Fee != nil {
		mapped, err := mapEntry(*wire.Fee)
		if err != nil {
			return domain.RawTransaction{}, domain.NewFatalFetchErrorf(
				"transaction %s fee entry: %w", wire.TransactionHash, err)
		}
		fee = &mapped
	}

	return domain.RawTransaction{
		Hash:        wire.TransactionHash,
		BlockHeight: wire.BlockHeight,
		BlockTime:   unixToTime(wire.BlockTime),
		Tag:         mapTypeTag(wire.Type),
		Status:      mapOutcome(wire.Outcome),
		Entries:     entries,
		Fee:         fee,
		Description: wire.Description,
	}, nil
}

// mapEntry converts a wire entry into the human-denominated domain form. A
// missing amount maps to zero and is left for classification to flag; a
// present but unparseable amount makes the whole response malformed.
func mapEntry(wire wireEntry) (domain.Entry, error) {
	asset := domain.AssetCCD
	if wire.Token != "" {
		asset = domain.Asset{Symbol: wire.Token, Decimals: domain.AssetCCD.Decimals}
	}
	if wire.Decimals != nil {
		asset.Decimals = *wire.Decimals
	}

	amount := decimal.Zero
	if wire.Amount != "" {
		parsed, err := decimal.NewFromString(wire.Amount)
		if err != nil {
			return domain.Entry{}, domain.NewFatalFetchErrorf("parsing amount %q: %w", wire.Amount, err)
		}
		amount = parsed.Shift(-asset.Decimals)
	}

	return domain.Entry{
		Account: domain.Account(wire.Account),
		Amount:  amount,
		Asset:   asset,
	}, nil
}

// mapTypeTag collapses the API's type strings into the closed taxonomy.
func mapTypeTag(wireType string) domain.TypeTag {
	switch wireType {
	case "transfer", "transferWithMemo", "transferWithSchedule", "encryptedAmountTransfer":
		return domain.TagTransfer
	case "blockReward", "bakingReward", "finalizationReward", "paydayAccountReward", "paydayFoundationReward":
		return domain.TagReward
	case "initContract", "updateContract":
		return domain.TagContractCall
	default:
		return domain.TagOther
	}
}

func mapOutcome(outcome string) domain.Status {
	if outcome == "success" {
		return domain.StatusSuccess
	}
	return domain.StatusFailure
}

// unixToTime converts fractional unix seconds into a UTC timestamp without
// losing the sub-second part.
func unixToTime(seconds float64) time.Time {
	sec, frac := math.Modf(seconds)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}
