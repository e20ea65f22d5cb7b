// Package synthetic generates seeded 1D signals with binary foreground
// segments, used to build integration test datasets.
package synthetic

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"signalseg/internal/models"
	"signalseg/pkg/dataset"
)

// Frequencies of the sine components summed into every signal, in cycles
// per signal length.
var Frequencies = []float64{5, 10, 20}

// Params controls signal generation.
type Params struct {
	Length      int
	NumTraining int
	NumTest     int
	Segments    int
	NoiseStdDev float64
	Seed        uint64
}

// Generator produces reproducible signals for a given seed.
type Generator struct {
	params Params
	rng    *rand.Rand
	noise  distuv.Normal
}

// NewGenerator creates a generator; signals depend only on params.
func NewGenerator(params Params) (*Generator, error) {
	if params.Length < 1 {
		return nil, fmt.Errorf("signal length must be positive, got %d", params.Length)
	}
	if params.NumTraining < 0 || params.NumTest < 0 || params.Segments < 0 {
		return nil, fmt.Errorf("case and segment counts must be non-negative")
	}
	if params.NoiseStdDev < 0 {
		return nil, fmt.Errorf("noise standard deviation must be non-negative")
	}
	src := rand.NewPCG(params.Seed, params.Seed^0x9e3779b97f4a7c15)
	return &Generator{
		params: params,
		rng:    rand.New(src),
		noise:  distuv.Normal{Mu: 0, Sigma: params.NoiseStdDev, Src: src},
	}, nil
}

// Signal returns one sum-of-sines signal with Gaussian noise. Inside each
// random segment the signal is forced to 1 and the label set to 1.
func (g *Generator) Signal() ([]float64, []uint8) {
	n := g.params.Length
	x := make([]float64, n)
	if n == 1 {
		x[0] = 0
	} else {
		floats.Span(x, 0, 1)
	}

	signal := make([]float64, n)
	for i, xi := range x {
		for _, f := range Frequencies {
			signal[i] += math.Sin(2 * math.Pi * f * xi)
		}
		if g.params.NoiseStdDev > 0 {
			signal[i] += g.noise.Rand()
		}
	}

	label := make([]uint8, n)
	for s := 0; s < g.params.Segments; s++ {
		start := g.rng.IntN(n)
		end := start + g.rng.IntN(n-start)
		for i := start; i < end; i++ {
			signal[i] = 1
			label[i] = 1
		}
	}
	return signal, label
}

// Cases generates the training cases followed by the unlabeled test cases.
func (g *Generator) Cases() []models.Case {
	cases := make([]models.Case, 0, g.params.NumTraining+g.params.NumTest)
	for s := 0; s < g.params.NumTraining; s++ {
		sig, seg := g.Signal()
		cases = append(cases, models.Case{
			ID:       fmt.Sprintf("%03d", s),
			Channels: [][]float64{sig},
			Label:    seg,
		})
	}
	for s := 0; s < g.params.NumTest; s++ {
		sig, _ := g.Signal()
		cases = append(cases, models.Case{
			ID:       fmt.Sprintf("%03d", s),
			Channels: [][]float64{sig},
			Test:     true,
		})
	}
	return cases
}

// Descriptor returns the dataset.json record for a generated dataset.
func (g *Generator) Descriptor() *dataset.Descriptor {
	return &dataset.Descriptor{
		ChannelNames: map[string]string{"0": "signal"},
		Labels: dataset.Labels{
			{Name: "background", ID: 0},
			{Name: "foreground", ID: 1},
		},
		NumTraining: g.params.NumTraining,
		FileEnding:  ".npy",
	}
}
