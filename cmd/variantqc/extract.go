package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/variantqc/internal/duckdb"
	"github.com/inodb/variantqc/internal/features"
)

type extractOptions struct {
	VCFPath    string
	OutputPath string
	DuckDBPath string // optional DuckDB copy of the feature table
}

func newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract per-variant features from a VCF file",
		Long: `Read every variant record from a VCF (plain or gzipped) and write one CSV
row per record with its identity fields, quality, filter and seven numeric
annotations. Malformed records are skipped with a warning.`,
		Example: `  variantqc extract
  variantqc extract --vcf calls.vcf.gz --output features/calls.csv
  variantqc extract --duckdb features/variant_features.duckdb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(viper.GetBool("verbose"))
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			return runExtract(extractOptions{
				VCFPath:    viper.GetString("extract.vcf"),
				OutputPath: viper.GetString("extract.output"),
				DuckDBPath: viper.GetString("extract.duckdb"),
			}, logger)
		},
	}

	cmd.Flags().String("vcf", defaultVCFPath, "Input VCF file (.vcf or .vcf.gz)")
	cmd.Flags().StringP("output", "o", defaultFeaturesPath, "Output CSV feature table")
	cmd.Flags().String("duckdb", "", "Also write the feature table to this DuckDB database")

	viper.BindPFlag("extract.vcf", cmd.Flags().Lookup("vcf"))
	viper.BindPFlag("extract.output", cmd.Flags().Lookup("output"))
	viper.BindPFlag("extract.duckdb", cmd.Flags().Lookup("duckdb"))

	return cmd
}

func runExtract(opts extractOptions, logger *zap.Logger) error {
	extractor := features.NewExtractor(nil)
	extractor.SetLogger(logger)

	rows, stats, err := extractor.ExtractFile(opts.VCFPath)
	if err != nil {
		return err
	}

	if err := features.WriteCSV(opts.OutputPath, rows); err != nil {
		return err
	}

	if opts.DuckDBPath != "" {
		store, err := duckdb.Open(opts.DuckDBPath)
		if err != nil {
			return err
		}
		if err := store.WriteFeatures(rows); err != nil {
			store.Close()
			return err
		}
		if err := store.Close(); err != nil {
			return fmt.Errorf("close feature store: %w", err)
		}
		logger.Debug("wrote feature store", zap.String("path", opts.DuckDBPath))
	}

	logger.Info("extracted features",
		zap.Int("variants", len(rows)),
		zap.Int("skipped", stats.Skipped),
		zap.String("output", opts.OutputPath))
	return nil
}
