package train

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

// StratifiedSplit partitions sample indices into train and test sets,
// keeping the class proportions of labels in both. The test set holds
// ceil(n*testFraction) samples. The same labels and seed always give the
// same partition.
func StratifiedSplit(labels []int, testFraction float64, seed uint64) (train, test []int, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction must be between 0 and 1, got %g", testFraction)
	}

	n := len(labels)
	if n == 0 {
		return nil, nil, fmt.Errorf("no samples to split")
	}
	byClass := make(map[int][]int)
	for i, label := range labels {
		byClass[label] = append(byClass[label], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	slices.Sort(classes)

	for _, c := range classes {
		if len(byClass[c]) < 2 {
			return nil, nil, fmt.Errorf("the least populated class (%d) has only 1 member; at least 2 are required to stratify", c)
		}
	}

	nTest := int(math.Ceil(testFraction * float64(n)))
	nTrain := n - nTest
	if nTest < len(classes) {
		return nil, nil, fmt.Errorf("test size %d is smaller than the number of classes %d", nTest, len(classes))
	}
	if nTrain < len(classes) {
		return nil, nil, fmt.Errorf("train size %d is smaller than the number of classes %d", nTrain, len(classes))
	}

	counts := make([]int, len(classes))
	for i, c := range classes {
		counts[i] = len(byClass[c])
	}
	testCounts := allocate(counts, nTest)

	rng := rand.New(rand.NewPCG(seed, 0))
	for i, c := range classes {
		idx := slices.Clone(byClass[c])
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		test = append(test, idx[:testCounts[i]]...)
		train = append(train, idx[testCounts[i]:]...)
	}
	rng.Shuffle(len(train), func(a, b int) { train[a], train[b] = train[b], train[a] })
	rng.Shuffle(len(test), func(a, b int) { test[a], test[b] = test[b], test[a] })

	return train, test, nil
}

// allocate splits total across classes in proportion to counts, handing
// out the rounding remainder by largest fractional part.
func allocate(counts []int, total int) []int {
	n := 0
	for _, c := range counts {
		n += c
	}

	out := make([]int, len(counts))
	type remainder struct {
		class int
		frac  float64
	}
	rems := make([]remainder, len(counts))
	assigned := 0
	for i, c := range counts {
		exact := float64(total) * float64(c) / float64(n)
		out[i] = int(math.Floor(exact))
		assigned += out[i]
		rems[i] = remainder{i, exact - math.Floor(exact)}
	}

	slices.SortStableFunc(rems, func(a, b remainder) int {
		switch {
		case a.frac > b.frac:
			return -1
		case a.frac < b.frac:
			return 1
		}
		return 0
	})
	for i := 0; assigned < total; i++ {
		r := rems[i%len(rems)]
		if out[r.class] < counts[r.class] {
			out[r.class]++
			assigned++
		}
	}
	return out
}
