package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tirasundara/ccd-tax-export/internal/domain"
)

func TestRawTransaction_Participants(t *testing.T) {
	tx := domain.RawTransaction{
		Hash:        "b7faf009cd0b7d2a8aef91e42b9e23b1873b69d4a01d29b4e3c2b87ac73dcbe1",
		BlockHeight: 104200,
		BlockTime:   time.Date(2025, 1, 15, 14, 30, 0, 0, time.UTC),
		Tag:         domain.TagTransfer,
		Status:      domain.StatusSuccess,
		Entries: []domain.Entry{
			{Account: "addr-a", Amount: decimal.RequireFromString("-10"), Asset: domain.AssetCCD},
			{Account: "addr-b", Amount: decimal.RequireFromString("10"), Asset: domain.AssetCCD},
			{Account: "addr-a", Amount: decimal.RequireFromString("-0.5"), Asset: domain.AssetCCD},
		},
		Fee: &domain.Entry{Account: "addr-a", Amount: decimal.RequireFromString("0.000165"), Asset: domain.AssetCCD},
	}

	participants := tx.Participants()

	if len(participants) != 2 {
		t.Fatalf("Expected 2 unique participants, got %d", len(participants))
	}

	// First appearance order is preserved.
	if participants[0] != "addr-a" || participants[1] != "addr-b" {
		t.Errorf("Expected participants [addr-a addr-b], got %v", participants)
	}
}

func TestRawTransaction_Succeeded(t *testing.T) {
	tx := domain.RawTransaction{Status: domain.StatusSuccess}
	if !tx.Succeeded() {
		t.Errorf("Expected a success-status transaction to report Succeeded")
	}

	tx.Status = domain.StatusFailure
	if tx.Succeeded() {
		t.Errorf("Expected a failure-status transaction not to report Succeeded")
	}
}
