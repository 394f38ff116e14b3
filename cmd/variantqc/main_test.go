package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inodb/variantqc/internal/duckdb"
	"github.com/inodb/variantqc/internal/train"
)

const singleRecordVCF = `##fileformat=VCFv4.2
##INFO=<ID=DP,Number=1,Type=Integer,Description="Total depth">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO
chr1	100	.	A	T	50.0	.	DP=30;MQ=60
`

// execute runs the root command with a fresh viper state and an empty HOME.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// trainingVCF builds a VCF where passing calls have high quality and depth.
func trainingVCF(n int) string {
	var b strings.Builder
	b.WriteString("##fileformat=VCFv4.2\n")
	b.WriteString("##INFO=<ID=DP,Number=1,Type=Integer,Description=\"Total depth\">\n")
	b.WriteString("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n")
	for i := range n {
		qual, dp, filter := 60+i%17, 30+i%11, "PASS"
		if i%3 == 0 {
			qual, dp, filter = 5+i%13, 4+i%7, "LowQual"
		}
		fmt.Fprintf(&b, "chr1\t%d\t.\tA\tG\t%d\t%s\tDP=%d;MQ=%d.5;FS=%d.25\n",
			1000+i, qual, filter, dp, 40+i%20, i%9)
	}
	return b.String()
}

func TestExtract_SingleRecord(t *testing.T) {
	dir := t.TempDir()
	vcfPath := filepath.Join(dir, "data", "merged_variants.vcf")
	outPath := filepath.Join(dir, "features", "variant_features.csv")
	writeFile(t, vcfPath, singleRecordVCF)

	require.NoError(t, runExtract(extractOptions{VCFPath: vcfPath, OutputPath: outPath}, zap.NewNop()))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t,
		"CHROM,POS,ID,REF,ALT,QUAL,FILTER,DP,MQ,QD,FS,SOR,ReadPosRankSum,MQRankSum\n"+
			"chr1,100,,A,T,50.0,PASS,30,60,,,,,\n",
		string(data))
}

func TestExtract_MissingVCF(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "features", "variant_features.csv")

	err := runExtract(extractOptions{
		VCFPath:    filepath.Join(dir, "data", "merged_variants.vcf"),
		OutputPath: outPath,
	}, zap.NewNop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, statErr := os.Stat(outPath)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestExtract_Rerun(t *testing.T) {
	dir := t.TempDir()
	vcfPath := filepath.Join(dir, "calls.vcf")
	outPath := filepath.Join(dir, "out", "features.csv")
	writeFile(t, vcfPath, trainingVCF(30))

	opts := extractOptions{VCFPath: vcfPath, OutputPath: outPath}
	require.NoError(t, runExtract(opts, zap.NewNop()))
	first, err := os.ReadFile(outPath)
	require.NoError(t, err)

	require.NoError(t, runExtract(opts, zap.NewNop()))
	second, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtract_DuckDB(t *testing.T) {
	dir := t.TempDir()
	vcfPath := filepath.Join(dir, "calls.vcf")
	dbPath := filepath.Join(dir, "features", "variant_features.duckdb")
	writeFile(t, vcfPath, trainingVCF(12))

	require.NoError(t, runExtract(extractOptions{
		VCFPath:    vcfPath,
		OutputPath: filepath.Join(dir, "features", "variant_features.csv"),
		DuckDBPath: dbPath,
	}, zap.NewNop()))

	store, err := duckdb.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()
	n, err := store.FeatureCount()
	require.NoError(t, err)
	assert.Equal(t, 12, n)
}

func TestPipeline_ExtractThenTrain(t *testing.T) {
	dir := t.TempDir()
	vcfPath := filepath.Join(dir, "data", "merged_variants.vcf")
	featPath := filepath.Join(dir, "features", "variant_features.csv")
	modelPath := filepath.Join(dir, "models", "random_forest_variantqc.gob")
	writeFile(t, vcfPath, trainingVCF(150))

	_, err := execute(t, "extract", "--vcf", vcfPath, "--output", featPath)
	require.NoError(t, err)

	out, err := execute(t, "train", "--features", featPath, "--model", modelPath, "--workers", "2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Model AUC: "), out)
	assert.Contains(t, out, "precision    recall  f1-score   support")

	m, err := train.LoadModel(modelPath)
	require.NoError(t, err)
	assert.Len(t, m.Forest.Trees, 200)
	assert.Equal(t, 120, m.TrainRows)
	assert.Equal(t, 30, m.TestRows)
}

func TestTrain_MissingFeatures(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "models", "model.gob")

	_, err := execute(t, "train", "--features", filepath.Join(dir, "missing.csv"), "--model", modelPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, statErr := os.Stat(modelPath)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestRun_ExitCodes(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	assert.Equal(t, ExitError, run([]string{"extract", "--vcf", filepath.Join(dir, "none.vcf"), "--output", filepath.Join(dir, "f.csv")}))
	assert.Equal(t, ExitSuccess, run([]string{"--version"}))
}

func TestConfig_SetGetShow(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "variantqc.yaml")
	writeFile(t, cfgPath, "train:\n  workers: 3\n")

	out, err := execute(t, "--config", cfgPath, "config", "get", "train.workers")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	out, err = execute(t, "--config", cfgPath, "config", "set", "extract.vcf", "calls.vcf.gz")
	require.NoError(t, err)
	assert.Contains(t, out, "Set extract.vcf = calls.vcf.gz in "+cfgPath)

	out, err = execute(t, "--config", cfgPath, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "vcf: calls.vcf.gz")

	_, err = execute(t, "--config", cfgPath, "config", "get", "no.such.key")
	require.Error(t, err)
}

func TestConfig_RejectsBadKeysAndValues(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "variantqc.yaml")
	writeFile(t, cfgPath, "")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown key", []string{"set", "annotations.alphamissense", "true"}, "unknown config key"},
		{"non-integer workers", []string{"set", "train.workers", "many"}, "expected an integer"},
		{"non-bool verbose", []string{"set", "verbose", "loud"}, "expected true or false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"--config", cfgPath, "config"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestConfig_ShowDefaults(t *testing.T) {
	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "# No config file")
	assert.Contains(t, out, "vcf: "+defaultVCFPath)
	assert.Contains(t, out, "model: "+defaultModelPath)
	assert.Contains(t, out, "workers: 0")

	out, err = execute(t, "config", "set", "train.workers", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "Set train.workers = 4 in ")
}

func TestConfig_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	vcfPath := filepath.Join(dir, "calls.vcf")
	outPath := filepath.Join(dir, "custom", "features.csv")
	cfgPath := filepath.Join(dir, "variantqc.yaml")
	writeFile(t, vcfPath, singleRecordVCF)
	writeFile(t, cfgPath, fmt.Sprintf("extract:\n  vcf: %s\n  output: %s\n", vcfPath, outPath))

	_, err := execute(t, "--config", cfgPath, "extract")
	require.NoError(t, err)
	assert.FileExists(t, outPath)
}

func TestConfig_ExplicitFileMissing(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config")
}
