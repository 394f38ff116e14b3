package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/variantqc/internal/train"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the variant quality classifier",
		Long: `Load the feature table, hold out a stratified 20% test partition, fit a
200-tree random forest on the rest and print the test AUC and classification
report. The fitted model is written to the model path.

Feature tables ending in .duckdb or .db are read from DuckDB.`,
		Example: `  variantqc train
  variantqc train --features features/variant_features.duckdb --workers 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(viper.GetBool("verbose"))
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			cfg := train.DefaultConfig()
			cfg.FeaturesPath = viper.GetString("train.features")
			cfg.ModelPath = viper.GetString("train.model")
			cfg.Forest.Workers = viper.GetInt("train.workers")

			return runTrain(cfg, cmd, logger)
		},
	}

	cmd.Flags().String("features", defaultFeaturesPath, "Feature table (CSV, or DuckDB by extension)")
	cmd.Flags().StringP("model", "m", defaultModelPath, "Output model file")
	cmd.Flags().IntP("workers", "w", 0, "Trees fitted in parallel (0 = all CPUs)")

	viper.BindPFlag("train.features", cmd.Flags().Lookup("features"))
	viper.BindPFlag("train.model", cmd.Flags().Lookup("model"))
	viper.BindPFlag("train.workers", cmd.Flags().Lookup("workers"))

	return cmd
}

func runTrain(cfg train.Config, cmd *cobra.Command, logger *zap.Logger) error {
	trainer := train.NewTrainer(cfg)
	trainer.SetLogger(logger)
	trainer.SetOutput(cmd.OutOrStdout())

	_, err := trainer.Run()
	return err
}
