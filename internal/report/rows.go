package report

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tirasundara/ccd-tax-export/internal/domain"
)

// dateLayout renders block timestamps the way the Koinly importer expects.
const dateLayout = "2006-01-02 15:04 UTC"

// Labels understood by the downstream tax tool. Deposits and withdrawals
// carry no label.
const (
	labelFee    = "fee"
	labelReward = "reward"
	labelOther  = "other"
)

// BuildRows flattens classified transactions into export rows, preserving the
// chronological input order. Excluded transactions yield no primary row, but a
// tracked fee always yields a row of its own: the fee was paid whether or not
// the transfer itself is reportable.
func BuildRows(classified []domain.ClassifiedTransaction) []domain.ExportRow {
	var rows []domain.ExportRow
	for _, ct := range classified {
		rows = append(rows, transactionRows(ct)...)
	}
	return rows
}

// transactionRows renders all rows of one classified transaction. The first
// row carries the bare transaction hash; further rows get a disambiguating
// suffix so every row stays traceable to exactly one transaction.
func transactionRows(ct domain.ClassifiedTransaction) []domain.ExportRow {
	var rows []domain.ExportRow
	if !ct.Excluded {
		rows = primaryRows(ct)
	}

	if ct.TrackedFee != nil && ct.Category != domain.CategoryFee {
		rows = append(rows, feeRow(ct, len(rows) > 0))
	}

	return rows
}

func primaryRows(ct domain.ClassifiedTransaction) []domain.ExportRow {
	switch ct.Category {
	case domain.CategoryDeposit, domain.CategoryWithdrawal:
		return assetRows(ct, "")
	case domain.CategoryReward:
		return assetRows(ct, labelReward)
	case domain.CategoryOther:
		return assetRows(ct, labelOther)
	case domain.CategoryFee:
		if ct.TrackedFee == nil {
			return nil
		}
		return []domain.ExportRow{feeRow(ct, false)}
	}

	return nil
}

// assetRows emits one row per asset with a nonzero tracked net amount.
// Positive nets are received, negative nets are sent.
func assetRows(ct domain.ClassifiedTransaction, label string) []domain.ExportRow {
	assets := ct.NetAssets()
	rows := make([]domain.ExportRow, 0, len(assets))

	for i, asset := range assets {
		hash := ct.Tx.Hash
		if i > 0 {
			hash = fmt.Sprintf("%s-%d", ct.Tx.Hash, i+1)
		}

		row := newRow(ct.Tx, hash)
		row.Label = label

		net := ct.Net[asset]
		if net.IsPositive() {
			row.ReceivedAmount = renderAmount(net, asset)
			row.ReceivedCurrency = asset.Symbol
		} else {
			row.SentAmount = renderAmount(net, asset)
			row.SentCurrency = asset.Symbol
		}

		rows = append(rows, row)
	}

	return rows
}

// feeRow renders a tracked fee as its own sent-amount row. The hash is
// suffixed only when the transaction also produced a primary row.
func feeRow(ct domain.ClassifiedTransaction, suffixed bool) domain.ExportRow {
	fee := *ct.TrackedFee

	hash := ct.Tx.Hash
	if suffixed {
		hash = ct.Tx.Hash + "-fee"
	}

	row := newRow(ct.Tx, hash)
	row.SentAmount = renderAmount(fee.Amount, fee.Asset)
	row.SentCurrency = fee.Asset.Symbol
	row.Label = labelFee
	row.Description = feeDescription(ct.Tx)
	return row
}

func newRow(tx domain.RawTransaction, hash string) domain.ExportRow {
	return domain.ExportRow{
		Date:        tx.BlockTime.UTC().Format(dateLayout),
		Description: describe(tx),
		TxHash:      hash,
	}
}

// renderAmount writes the magnitude with the asset's native decimal precision;
// direction is already expressed by the sent/received column.
func renderAmount(value decimal.Decimal, asset domain.Asset) string {
	return value.Abs().StringFixed(asset.Decimals)
}

func describe(tx domain.RawTransaction) string {
	desc := tx.Description
	if desc == "" {
		desc = string(tx.Tag)
	}
	if !tx.Succeeded() {
		desc += " (failed)"
	}
	return desc
}

func feeDescription(tx domain.RawTransaction) string {
	if !tx.Succeeded() {
		return "transaction fee (failed transaction)"
	}
	return "transaction fee"
}
