package train

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inodb/variantqc/internal/duckdb"
	"github.com/inodb/variantqc/internal/features"
	"github.com/inodb/variantqc/internal/forest"
)

// Config holds trainer settings.
type Config struct {
	FeaturesPath string // CSV feature table, or a DuckDB database
	ModelPath    string
	TestFraction float64
	Forest       forest.Params
}

// DefaultConfig returns the standard training configuration.
func DefaultConfig() Config {
	return Config{
		FeaturesPath: "features/variant_features.csv",
		ModelPath:    "models/random_forest_variantqc.gob",
		TestFraction: 0.2,
		Forest:       forest.DefaultParams(),
	}
}

// Result summarizes a training run.
type Result struct {
	Model  *Model
	AUC    float64
	Report Report
	Train  []int // row indices of the training partition
	Test   []int // row indices of the test partition
}

// Trainer runs the full training pipeline.
type Trainer struct {
	cfg    Config
	logger *zap.Logger
	out    io.Writer
}

// NewTrainer creates a trainer. The evaluation report goes to os.Stdout.
func NewTrainer(cfg Config) *Trainer {
	return &Trainer{
		cfg:    cfg,
		logger: zap.NewNop(),
		out:    os.Stdout,
	}
}

// SetLogger sets the logger for info messages.
func (t *Trainer) SetLogger(l *zap.Logger) {
	t.logger = l
}

// SetOutput sets where the evaluation report is printed.
func (t *Trainer) SetOutput(w io.Writer) {
	t.out = w
}

// LoadRows reads the feature table at path. Paths ending in .duckdb or .db
// are read from a DuckDB database.
func LoadRows(path string) ([]features.Row, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("feature file not found: %s: %w", path, os.ErrNotExist)
		}
		return nil, fmt.Errorf("stat feature file: %w", err)
	}

	if !duckdb.IsDuckDB(path) {
		return features.ReadCSV(path)
	}

	store, err := duckdb.Open(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.LoadFeatures()
}

// Run loads the feature table, fits the classifier on a stratified training
// partition, evaluates it on the test partition and saves the model.
func (t *Trainer) Run() (*Result, error) {
	rows, err := LoadRows(t.cfg.FeaturesPath)
	if err != nil {
		return nil, err
	}
	t.logger.Info("loaded feature table",
		zap.String("path", t.cfg.FeaturesPath),
		zap.Int("variants", len(rows)),
		zap.Int("columns", len(features.Columns)))

	source, err := StatFile(t.cfg.FeaturesPath)
	if err != nil {
		return nil, fmt.Errorf("stat feature file: %w", err)
	}

	res, err := t.Fit(rows)
	if err != nil {
		return nil, err
	}
	res.Model.Source = source

	if err := res.Model.Save(t.cfg.ModelPath); err != nil {
		return nil, err
	}
	t.logger.Info("saved model", zap.String("path", t.cfg.ModelPath), zap.String("run_id", res.Model.RunID))

	return res, nil
}

// Fit splits rows, trains the forest and evaluates it without touching disk.
func (t *Trainer) Fit(rows []features.Row) (*Result, error) {
	x := Matrix(rows)
	y := Labels(rows)

	trainIdx, testIdx, err := StratifiedSplit(y, t.cfg.TestFraction, t.cfg.Forest.Seed)
	if err != nil {
		return nil, fmt.Errorf("split feature table: %w", err)
	}
	xTrain, yTrain := subset(x, y, trainIdx)
	xTest, yTest := subset(x, y, testIdx)

	clf := forest.NewClassifier(t.cfg.Forest)
	clf.SetLogger(t.logger)

	start := time.Now()
	f, err := clf.Fit(xTrain, yTrain)
	if err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}
	t.logger.Debug("forest fitted",
		zap.Int("trees", len(f.Trees)),
		zap.Int("train_rows", len(trainIdx)),
		zap.Duration("elapsed", time.Since(start)))

	proba, err := f.PredictProba(xTest)
	if err != nil {
		return nil, fmt.Errorf("predict test partition: %w", err)
	}
	auc, err := AUC(yTest, proba)
	if err != nil {
		return nil, fmt.Errorf("evaluate model: %w", err)
	}
	report, err := ClassificationReport(yTest, forest.Classes(proba))
	if err != nil {
		return nil, fmt.Errorf("evaluate model: %w", err)
	}

	t.logger.Info("model evaluated", zap.String("auc", fmt.Sprintf("%.3f", auc)))
	fmt.Fprintf(t.out, "Model AUC: %.3f\n\n%s", auc, report)

	return &Result{
		Model: &Model{
			RunID:          uuid.NewString(),
			CreatedAt:      time.Now().UTC(),
			FeatureColumns: FeatureColumns,
			TrainRows:      len(trainIdx),
			TestRows:       len(testIdx),
			Forest:         f,
		},
		AUC:    auc,
		Report: report,
		Train:  trainIdx,
		Test:   testIdx,
	}, nil
}
