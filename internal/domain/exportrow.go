package domain

// ExportRow is one line of the export file in the Koinly universal schema.
// Fields are pre-rendered strings; absent fields stay empty. A row is created
// once per exportable event and never mutated afterwards.
type ExportRow struct {
	Date             string
	SentAmount       string
	SentCurrency     string
	ReceivedAmount   string
	ReceivedCurrency string
	FeeAmount        string
	FeeCurrency      string
	NetWorthAmount   string
	NetWorthCurrency string
	Label            string
	Description      string
	TxHash           string
}

// RunSummary describes one completed pipeline run.
type RunSummary struct {
	RunID              string
	AccountCount       int
	TransactionsMerged int
	DuplicatesDropped  int64
	PagesFetched       int64
	Retries            int64
	InternalsExcluded  int
	Warnings           int
	RowsWritten        int
	OutputPath         string
}
