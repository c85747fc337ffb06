package report

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/tirasundara/ccd-tax-export/internal/domain"
)

// OutputFormatter defines the interface for serializing export rows
type OutputFormatter interface {
	Format(rows []domain.ExportRow) ([]byte, error)
	FileExtension() string
}

// koinlyHeader is the fixed column set of the Koinly universal import format.
// Column order is part of the contract and must not change.
var koinlyHeader = []string{
	"Date",
	"Sent Amount",
	"Sent Currency",
	"Received Amount",
	"Received Currency",
	"Fee Amount",
	"Fee Currency",
	"Net Worth Amount",
	"Net Worth Currency",
	"Label",
	"Description",
	"TxHash",
}

// KoinlyFormatter renders export rows as a Koinly universal CSV file
type KoinlyFormatter struct{}

func NewKoinlyFormatter() *KoinlyFormatter {
	return &KoinlyFormatter{}
}

// Format implements the OutputFormatter interface for Koinly CSV
func (f *KoinlyFormatter) Format(rows []domain.ExportRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(koinlyHeader); err != nil {
		return nil, fmt.Errorf("writing CSV header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.Date,
			row.SentAmount,
			row.SentCurrency,
			row.ReceivedAmount,
			row.ReceivedCurrency,
			row.FeeAmount,
			row.FeeCurrency,
			row.NetWorthAmount,
			row.NetWorthCurrency,
			row.Label,
			row.Description,
			row.TxHash,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("writing CSV row %s: %w", row.TxHash, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing CSV: %w", err)
	}

	return buf.Bytes(), nil
}

func (f *KoinlyFormatter) FileExtension() string {
	return "csv"
}
