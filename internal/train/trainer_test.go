package train

import (
	"bytes"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/variantqc/internal/duckdb"
	"github.com/inodb/variantqc/internal/features"
)

// syntheticRows returns n rows where passing variants have higher quality
// and depth than filtered ones, with a few absent annotations.
func syntheticRows(n int) []features.Row {
	rng := rand.New(rand.NewPCG(11, 12))
	rows := make([]features.Row, n)
	for i := range rows {
		pass := i%3 != 0
		r := features.Row{
			Chrom: "chr1", Pos: int64(1000 + i), Ref: "A", Alt: "G",
			Filter: "LowQual",
		}
		base := 5.0
		if pass {
			r.Filter = "PASS"
			base = 60
		}
		r.Qual = features.Float(base + rng.Float64()*20)
		r.DP = features.Int(int64(base/2) + rng.Int64N(10))
		r.MQ = features.Float(40 + rng.Float64()*20)
		r.QD = features.Float(base/10 + rng.Float64())
		r.FS = features.Float(rng.Float64() * 10)
		r.SOR = features.Float(rng.Float64() * 3)
		if i%7 != 0 {
			r.ReadPosRankSum = features.Float(rng.NormFloat64())
			r.MQRankSum = features.Float(rng.NormFloat64())
		}
		rows[i] = r
	}
	return rows
}

func testConfig(dir string) Config {
	cfg := DefaultConfig()
	cfg.FeaturesPath = filepath.Join(dir, "features", "variant_features.csv")
	cfg.ModelPath = filepath.Join(dir, "models", "random_forest_variantqc.gob")
	cfg.Forest.NTrees = 25
	cfg.Forest.MaxDepth = 5
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "features/variant_features.csv", cfg.FeaturesPath)
	assert.Equal(t, "models/random_forest_variantqc.gob", cfg.ModelPath)
	assert.Equal(t, 0.2, cfg.TestFraction)
	assert.Equal(t, 200, cfg.Forest.NTrees)
	assert.Equal(t, 10, cfg.Forest.MaxDepth)
	assert.Equal(t, uint64(42), cfg.Forest.Seed)
	assert.Zero(t, cfg.Forest.Workers)
}

func TestTrainer_Run(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	require.NoError(t, features.WriteCSV(cfg.FeaturesPath, syntheticRows(200)))

	var out bytes.Buffer
	tr := NewTrainer(cfg)
	tr.SetOutput(&out)

	res, err := tr.Run()
	require.NoError(t, err)

	assert.Len(t, res.Train, 160)
	assert.Len(t, res.Test, 40)
	assert.Greater(t, res.AUC, 0.95)
	assert.Contains(t, out.String(), "Model AUC: ")
	assert.Contains(t, out.String(), "weighted avg")

	m, err := LoadModel(cfg.ModelPath)
	require.NoError(t, err)
	assert.Equal(t, res.Model.RunID, m.RunID)
	assert.Equal(t, FeatureColumns, m.FeatureColumns)
	assert.Equal(t, 160, m.TrainRows)
	assert.Equal(t, 40, m.TestRows)
	assert.Equal(t, cfg.FeaturesPath, m.Source.Path)
	assert.Len(t, m.Forest.Trees, 25)

	proba, err := m.PredictProba([][]float64{{75, 35, 50, 6.5, 1, 1, 0, 0}})
	require.NoError(t, err)
	assert.Greater(t, proba[0], 0.5)
}

func TestTrainer_RunOverwritesModel(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	require.NoError(t, features.WriteCSV(cfg.FeaturesPath, syntheticRows(100)))

	tr := NewTrainer(cfg)
	tr.SetOutput(&bytes.Buffer{})
	first, err := tr.Run()
	require.NoError(t, err)
	second, err := tr.Run()
	require.NoError(t, err)

	m, err := LoadModel(cfg.ModelPath)
	require.NoError(t, err)
	assert.Equal(t, second.Model.RunID, m.RunID)
	assert.NotEqual(t, first.Model.RunID, second.Model.RunID)

	entries, err := os.ReadDir(filepath.Dir(cfg.ModelPath))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTrainer_FitReproducible(t *testing.T) {
	rows := syntheticRows(150)
	// Flip a few labels so the problem is not trivially separable.
	rows[1].Filter, rows[2].Filter, rows[4].Filter = "LowQual", "LowQual", "PASS"

	cfg := testConfig(t.TempDir())
	fit := func(workers int) *Result {
		c := cfg
		c.Forest.Workers = workers
		tr := NewTrainer(c)
		tr.SetOutput(&bytes.Buffer{})
		res, err := tr.Fit(rows)
		require.NoError(t, err)
		return res
	}

	a, b := fit(1), fit(4)
	assert.Equal(t, a.Train, b.Train)
	assert.Equal(t, a.Test, b.Test)
	assert.Equal(t, a.AUC, b.AUC)
	assert.Equal(t, a.Report, b.Report)
}

func TestTrainer_MissingFeatureFile(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	_, err := NewTrainer(cfg).Run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Contains(t, err.Error(), cfg.FeaturesPath)

	_, statErr := os.Stat(cfg.ModelPath)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestTrainer_SingleClass(t *testing.T) {
	rows := syntheticRows(30)
	for i := range rows {
		rows[i].Filter = "PASS"
	}

	cfg := testConfig(t.TempDir())
	tr := NewTrainer(cfg)
	tr.SetOutput(&bytes.Buffer{})
	_, err := tr.Fit(rows)
	require.Error(t, err)
}

func TestTrainer_DuckDBSource(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.FeaturesPath = filepath.Join(dir, "features", "variant_features.duckdb")

	store, err := duckdb.Open(cfg.FeaturesPath)
	require.NoError(t, err)
	require.NoError(t, store.WriteFeatures(syntheticRows(120)))
	require.NoError(t, store.Close())

	tr := NewTrainer(cfg)
	tr.SetOutput(&bytes.Buffer{})
	res, err := tr.Run()
	require.NoError(t, err)
	assert.Len(t, res.Test, 24)
	assert.Greater(t, res.AUC, 0.9)
}

func TestMatrixAndLabels(t *testing.T) {
	rows := []features.Row{
		{Qual: features.Float(50), Filter: "PASS", DP: features.Int(30), MQ: features.Int(60)},
		{Filter: "q10;low_qual", QD: features.Float(2.5), MQRankSum: features.Float(-1)},
		{Filter: "pass"},
	}

	assert.Equal(t, []int{1, 0, 0}, Labels(rows))

	x := Matrix(rows)
	require.Len(t, x, 3)
	require.Len(t, x[0], len(FeatureColumns))
	assert.Equal(t, 50.0, x[0][0])
	assert.Equal(t, 30.0, x[0][1])
	assert.Equal(t, 60.0, x[0][2])
	assert.True(t, math.IsNaN(x[0][3]))
	assert.True(t, math.IsNaN(x[1][0]))
	assert.Equal(t, 2.5, x[1][3])
	assert.Equal(t, -1.0, x[1][7])
}

func TestLabel(t *testing.T) {
	tests := []struct {
		filter string
		want   int
	}{
		{"PASS", 1},
		{"PASS;q10", 0},
		{"PASSED", 0},
		{"Pass", 0},
		{"q10", 0},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			assert.Equal(t, tt.want, Label(&features.Row{Filter: tt.filter}))
		})
	}
}
