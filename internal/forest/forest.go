// Package forest implements a random forest binary classifier.
//
// Trees are CART classifiers grown on bootstrap samples with Gini impurity and a
// random subset of features per split. Missing values (NaN) are routed at each
// split to the side that gives the lower impurity. Every tree draws from its own
// random source derived from the forest seed, so a fit is reproducible
// regardless of how many workers build it.
package forest

import (
	"encoding/gob"
	"fmt"
	"io"
	"math"
	"math/rand/v2"

	"go.uber.org/zap"
)

// Params configures forest training.
type Params struct {
	NTrees          int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // features tried per split; 0 means floor(sqrt(n_features))
	Bootstrap       bool
	Seed            uint64
	Workers         int // 0 means runtime.NumCPU()
}

// DefaultParams returns the parameters used for variant QC models.
func DefaultParams() Params {
	return Params{
		NTrees:          200,
		MaxDepth:        10,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		Seed:            42,
	}
}

// Forest is a fitted random forest.
type Forest struct {
	Params    Params
	NFeatures int
	Trees     []*Tree
}

// Classifier fits forests.
type Classifier struct {
	params Params
	logger *zap.Logger
}

// NewClassifier creates a classifier with the given parameters.
func NewClassifier(p Params) *Classifier {
	return &Classifier{
		params: p,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for training progress.
func (c *Classifier) SetLogger(l *zap.Logger) {
	c.logger = l
}

// Fit trains a forest on the samples in x (one row per sample, NaN for
// missing values) with binary labels y.
func (c *Classifier) Fit(x [][]float64, y []int) (*Forest, error) {
	p := c.params
	if err := validate(p, x, y); err != nil {
		return nil, err
	}

	nFeatures := len(x[0])
	maxFeatures := p.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = max(1, int(math.Sqrt(float64(nFeatures))))
	}
	maxFeatures = min(maxFeatures, nFeatures)

	items := make(chan buildItem, p.NTrees)
	for i := range p.NTrees {
		items <- buildItem{Seq: i}
	}
	close(items)

	build := func(item buildItem) *Tree {
		rng := rand.New(rand.NewPCG(p.Seed, uint64(item.Seq)))
		b := &builder{x: x, y: y, params: p, maxFeatures: maxFeatures, rng: rng}
		return b.build(sampleIndices(rng, len(x), p.Bootstrap))
	}

	f := &Forest{Params: p, NFeatures: nFeatures, Trees: make([]*Tree, 0, p.NTrees)}
	err := orderedCollect(parallelBuild(items, p.Workers, build), func(r buildResult) error {
		f.Trees = append(f.Trees, r.Tree)
		if n := len(f.Trees); n%50 == 0 || n == p.NTrees {
			c.logger.Debug("trees fitted", zap.Int("done", n), zap.Int("total", p.NTrees))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func validate(p Params, x [][]float64, y []int) error {
	if p.NTrees <= 0 {
		return fmt.Errorf("n_trees must be positive, got %d", p.NTrees)
	}
	if p.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be positive, got %d", p.MaxDepth)
	}
	if p.MinSamplesSplit < 2 {
		return fmt.Errorf("min_samples_split must be at least 2, got %d", p.MinSamplesSplit)
	}
	if p.MinSamplesLeaf < 1 {
		return fmt.Errorf("min_samples_leaf must be at least 1, got %d", p.MinSamplesLeaf)
	}
	if len(x) == 0 {
		return fmt.Errorf("no training samples")
	}
	if len(x) != len(y) {
		return fmt.Errorf("%d samples but %d labels", len(x), len(y))
	}
	n := len(x[0])
	if n == 0 {
		return fmt.Errorf("no features")
	}
	for i, row := range x {
		if len(row) != n {
			return fmt.Errorf("sample %d has %d features, expected %d", i, len(row), n)
		}
	}
	for i, label := range y {
		if label != 0 && label != 1 {
			return fmt.Errorf("label %d of sample %d is not 0 or 1", label, i)
		}
	}
	return nil
}

// sampleIndices draws n indices with replacement, or returns all indices
// in order when bootstrap is off.
func sampleIndices(rng *rand.Rand, n int, bootstrap bool) []int {
	idx := make([]int, n)
	for i := range idx {
		if bootstrap {
			idx[i] = rng.IntN(n)
		} else {
			idx[i] = i
		}
	}
	return idx
}

// PredictProba returns the class-1 probability of each sample, averaged over trees.
func (f *Forest) PredictProba(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != f.NFeatures {
			return nil, fmt.Errorf("sample %d has %d features, model expects %d", i, len(row), f.NFeatures)
		}
		sum := 0.0
		for _, t := range f.Trees {
			sum += t.PredictProba(row)
		}
		out[i] = sum / float64(len(f.Trees))
	}
	return out, nil
}

// Predict returns the predicted class of each sample. Class 1 requires a
// probability strictly above one half.
func (f *Forest) Predict(x [][]float64) ([]int, error) {
	proba, err := f.PredictProba(x)
	if err != nil {
		return nil, err
	}
	return Classes(proba), nil
}

// Classes converts class-1 probabilities into class labels.
func Classes(proba []float64) []int {
	labels := make([]int, len(proba))
	for i, p := range proba {
		if p > 0.5 {
			labels[i] = 1
		}
	}
	return labels
}

// Encode writes the forest in gob format.
func (f *Forest) Encode(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(f); err != nil {
		return fmt.Errorf("encode forest: %w", err)
	}
	return nil
}

// Decode reads a forest written by Encode.
func Decode(r io.Reader) (*Forest, error) {
	var f Forest
	if err := gob.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode forest: %w", err)
	}
	return &f, nil
}
