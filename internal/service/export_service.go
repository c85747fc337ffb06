package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tirasundara/ccd-tax-export/internal/classifier"
	"github.com/tirasundara/ccd-tax-export/internal/domain"
	"github.com/tirasundara/ccd-tax-export/internal/report"
	"github.com/tirasundara/ccd-tax-export/internal/retrieval"
	"github.com/tirasundara/ccd-tax-export/pkg/fileutil"
)

// outputFileMode is the permission of the written export file.
const outputFileMode = 0o644

// ExportService orchestrates one export run: retrieve, classify, render,
// write. A failed stage aborts the run before the output file is touched, so
// a previously written export is never replaced by partial data.
type ExportService struct {
	retriever  *retrieval.Retriever
	classifier *classifier.Classifier
	formatter  report.OutputFormatter
	tracked    domain.TrackedAccountSet
	outputPath string
	log        zerolog.Logger
}

// NewExportService creates an ExportService from its pipeline stages.
func NewExportService(
	retriever *retrieval.Retriever,
	classifier *classifier.Classifier,
	formatter report.OutputFormatter,
	tracked domain.TrackedAccountSet,
	outputPath string,
	log zerolog.Logger,
) *ExportService {
	return &ExportService{
		retriever:  retriever,
		classifier: classifier,
		formatter:  formatter,
		tracked:    tracked,
		outputPath: outputPath,
		log:        log.With().Str("component", "export").Logger(),
	}
}

// Run executes the pipeline and reports what it did. Retrieval and export
// failures surface as RetrievalFailedError and ExportFailedError respectively;
// in both cases no output file is written.
func (s *ExportService) Run(ctx context.Context) (domain.RunSummary, error) {
	runID := uuid.NewString()
	log := s.log.With().Str("run_id", runID).Logger()

	log.Info().
		Int("accounts", s.tracked.Len()).
		Str("output", s.outputPath).
		Msg("starting export run")

	merged, stats, err := s.retriever.RetrieveAll(ctx, s.tracked)
	if err != nil {
		return domain.RunSummary{}, err
	}

	classified := s.classifier.ClassifyAll(merged)

	var excluded, warned int
	for _, ct := range classified {
		if ct.Excluded {
			excluded++
		}
		if len(ct.Warnings) > 0 {
			warned++
		}
	}

	rows := report.BuildRows(classified)

	output, err := s.formatter.Format(rows)
	if err != nil {
		return domain.RunSummary{}, domain.NewExportFailedError(fmt.Errorf("formatting %d rows: %w", len(rows), err))
	}

	if err := fileutil.WriteFileAtomic(s.outputPath, output, outputFileMode); err != nil {
		return domain.RunSummary{}, domain.NewExportFailedError(fmt.Errorf("writing %s: %w", s.outputPath, err))
	}

	summary := domain.RunSummary{
		RunID:              runID,
		AccountCount:       s.tracked.Len(),
		TransactionsMerged: len(merged),
		DuplicatesDropped:  stats.DuplicatesDropped.Load(),
		PagesFetched:       stats.PagesFetched.Load(),
		Retries:            stats.Retries.Load(),
		InternalsExcluded:  excluded,
		Warnings:           warned,
		RowsWritten:        len(rows),
		OutputPath:         s.outputPath,
	}

	log.Info().
		Int("transactions", summary.TransactionsMerged).
		Int("rows", summary.RowsWritten).
		Int("internal", summary.InternalsExcluded).
		Int("warnings", summary.Warnings).
		Msg("export complete")

	return summary, nil
}
