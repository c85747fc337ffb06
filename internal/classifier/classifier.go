package classifier

import (
	"github.com/rs/zerolog"

	"github.com/tirasundara/ccd-tax-export/internal/domain"
)

// Classifier assigns a tax category to each raw transaction and computes the
// per-asset net amount attributable to the tracked account set. It is a pure
// function of (transaction, tracked set); anomalies are recovered as warnings
// rather than surfaced as errors, so one malformed record cannot abort a run.
type Classifier struct {
	tracked domain.TrackedAccountSet
	log     zerolog.Logger
}

// NewClassifier creates a Classifier for the given tracked account set.
func NewClassifier(tracked domain.TrackedAccountSet, log zerolog.Logger) *Classifier {
	return &Classifier{
		tracked: tracked,
		log:     log.With().Str("component", "classifier").Logger(),
	}
}

// ClassifyAll classifies every transaction in order, preserving the input
// ordering.
func (c *Classifier) ClassifyAll(txs []domain.RawTransaction) []domain.ClassifiedTransaction {
	classified := make([]domain.ClassifiedTransaction, 0, len(txs))

	var excluded, warned int
	for _, tx := range txs {
		ct := c.Classify(tx)
		if ct.Excluded {
			excluded++
		}
		if len(ct.Warnings) > 0 {
			warned++
		}
		classified = append(classified, ct)
	}

	c.log.Info().
		Int("transactions", len(txs)).
		Int("internal", excluded).
		Int("warnings", warned).
		Msg("classification complete")

	return classified
}

// Classify derives the net effect and fee attribution of a single transaction
// and runs the category rules in order until one claims it.
func (c *Classifier) Classify(tx domain.RawTransaction) domain.ClassifiedTransaction {
	classified := domain.ClassifiedTransaction{
		Tx:         tx,
		Net:        trackedNet(tx, c.tracked),
		TrackedFee: attributableFee(tx, c.tracked),
	}

	// Structurally inconsistent records degrade to Other with a warning
	// instead of failing the run. Their fee, if tracked, is still reportable.
	if violations := structuralViolations(tx); len(violations) > 0 {
		for _, violation := range violations {
			c.log.Warn().Str("hash", tx.Hash).Err(violation).Msg("invariant violation recovered")
			classified.Warnings = append(classified.Warnings, violation.Error())
		}
		classified.Category = domain.CategoryOther
		return classified
	}

	ev := evaluation{
		tx:         tx,
		tracked:    c.tracked,
		net:        classified.Net,
		nonzero:    classified.NetAssets(),
		trackedFee: classified.TrackedFee,
	}

	classified.Category = domain.CategoryOther
	for _, rule := range classificationRules {
		if category, claimed := rule(ev); claimed {
			classified.Category = category
			break
		}
	}

	classified.Excluded = classified.Category == domain.CategoryInternalTransfer
	return classified
}
