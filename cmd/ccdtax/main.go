package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tirasundara/ccd-tax-export/internal/ccdscan"
	"github.com/tirasundara/ccd-tax-export/internal/classifier"
	"github.com/tirasundara/ccd-tax-export/internal/report"
	"github.com/tirasundara/ccd-tax-export/internal/retrieval"
	"github.com/tirasundara/ccd-tax-export/internal/service"
)

var flagAccounts []string

var rootCmd = &cobra.Command{
	Use:          "ccdtax",
	Short:        "Export Concordium account transaction history for tax reporting",
	SilenceUsage: true,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Fetch, classify and export the history of the tracked accounts",
	RunE:  runExport,
}

func init() {
	registerExportFlags(exportCmd.Flags())

	// Every flag can be overridden by a CCDTAX_* environment variable,
	// e.g. CCDTAX_API_URL or CCDTAX_ACCOUNTS_FILE.
	viper.SetEnvPrefix("ccdtax")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	cobra.CheckErr(viper.BindPFlags(exportCmd.Flags()))

	rootCmd.AddCommand(exportCmd)
}

func registerExportFlags(flags *pflag.FlagSet) {
	flags.StringArrayVar(&flagAccounts, "account", nil, "Tracked account address (repeatable)")
	flags.String("accounts-file", "", "YAML file listing tracked account addresses")
	flags.String("api-url", ccdscan.DefaultBaseURL, "Transaction index API base URL")
	flags.Int("limit", retrieval.DefaultPageLimit, "Page size for API requests")
	flags.Int("concurrency", retrieval.DefaultConcurrency, "Number of accounts fetched in parallel")
	flags.Int("retries", retrieval.DefaultMaxRetries, "Retry budget per page fetch")
	flags.String("output", "", "Path of the export file")
	flags.String("format", "koinly", "Output format: koinly only for now")
	flags.BoolP("verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	log := newLogger(viper.GetBool("verbose"))

	tracked, err := loadAccounts(flagAccounts, viper.GetString("accounts-file"))
	if err != nil {
		return fmt.Errorf("loading tracked accounts: %w", err)
	}

	formatter, err := formatterFor(viper.GetString("format"))
	if err != nil {
		return err
	}

	outputPath := viper.GetString("output")
	if outputPath == "" {
		return fmt.Errorf("an output path is required (--output or CCDTAX_OUTPUT)")
	}
	// Without an extension, adopt the formatter's default one.
	if !strings.Contains(filepath.Base(outputPath), ".") {
		outputPath = fmt.Sprintf("%s.%s", outputPath, formatter.FileExtension())
	}

	client, err := ccdscan.NewClient(nil, viper.GetString("api-url"), log)
	if err != nil {
		return fmt.Errorf("building API client: %w", err)
	}

	retriever := retrieval.NewRetriever(client, retrieval.Config{
		PageLimit:   viper.GetInt("limit"),
		Concurrency: viper.GetInt("concurrency"),
		MaxRetries:  viper.GetInt("retries"),
	}, log)

	svc := service.NewExportService(
		retriever,
		classifier.NewClassifier(tracked, log),
		formatter,
		tracked,
		outputPath,
		log,
	)

	summary, err := svc.Run(cmd.Context())
	if err != nil {
		log.Error().Err(err).Msg("export run failed")
		return err
	}

	fmt.Printf("Wrote %d rows for %d accounts to %s\n", summary.RowsWritten, summary.AccountCount, summary.OutputPath)
	return nil
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func formatterFor(name string) (report.OutputFormatter, error) {
	switch name {
	case "koinly":
		return report.NewKoinlyFormatter(), nil

	// Can add other formats later: cointracking, etc
	default:
		return nil, fmt.Errorf("unsupported output format: %s", name)
	}
}
