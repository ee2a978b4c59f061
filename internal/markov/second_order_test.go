package markov

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fittedSecondOrder(t *testing.T, states []int, w Weighting, sequences ...[]int) *SecondOrderChain {
	t.Helper()
	c, err := NewSecondOrderChain(mustStates(t, states...))
	require.NoError(t, err)
	require.NoError(t, c.Fit(sequences, w))
	return c
}

func TestSecondOrder_FitCountsBothContextStates(t *testing.T) {
	c := fittedSecondOrder(t, []int{60, 62, 64}, PitchWeighting, []int{60, 62, 64, 62, 60})

	tests := []struct {
		first, second int
		want          []float64
	}{
		{60, 62, []float64{0, 0, 4}},
		{62, 64, []float64{0, 4, 0}},
		{64, 62, []float64{4, 0, 0}},
		{60, 60, []float64{0, 0, 0}},
	}
	for _, tt := range tests {
		counts, err := c.Counts(tt.first, tt.second)
		require.NoError(t, err)
		assert.Equal(t, tt.want, counts, "pair (%d, %d)", tt.first, tt.second)
	}
}

func TestSecondOrder_FitMixedWeights(t *testing.T) {
	// (40, 60) is wider than an octave, (58, 60) is not: 1 + 2
	c := fittedSecondOrder(t, []int{40, 58, 60}, PitchWeighting, []int{40, 58, 60})
	counts, err := c.Counts(40, 58)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 3}, counts)

	// duration: |100-200| and |105-200| are both far
	d := fittedSecondOrder(t, []int{100, 105, 200}, DurationWeighting, []int{100, 105, 200}, []int{100, 105, 100})
	counts, err = d.Counts(100, 105)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 0, 2}, counts)
}

func TestSecondOrder_EveryPairSumsToOne(t *testing.T) {
	states := []int{60, 62, 64, 65}
	c := fittedSecondOrder(t, states, PitchWeighting, []int{60, 62, 64, 65, 64, 62, 60})

	for _, a := range states {
		for _, b := range states {
			dist, err := c.Distribution(a, b)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, sum(dist), 1e-9, "pair (%d, %d)", a, b)
		}
	}
}

func TestSecondOrder_UnseenPairIsUniform(t *testing.T) {
	c := fittedSecondOrder(t, []int{1, 2, 3, 4}, PitchWeighting, []int{1, 2, 3})

	dist, err := c.Distribution(4, 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, dist)

	dist, err = c.Distribution(1, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 0}, dist)
}

func TestSecondOrder_FitUnknownSymbolIsAtomic(t *testing.T) {
	c := fittedSecondOrder(t, []int{1, 2, 3}, PitchWeighting, []int{1, 2, 3})
	before := c.Snapshot()

	err := c.Fit([][]int{{1, 2, 3, 1}, {2, 3, 42}}, PitchWeighting)
	require.ErrorIs(t, err, ErrUnknownSymbol)
	assert.Equal(t, before, c.Snapshot())
}

func TestSecondOrder_Update(t *testing.T) {
	c := fittedSecondOrder(t, []int{1, 2, 3}, PitchWeighting, []int{1, 2, 3})

	require.NoError(t, c.Update([][]int{{1, 2, 3, 1}}))

	counts, err := c.Counts(1, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 5}, counts)

	counts, err = c.Counts(2, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, counts)

	counts, err = c.Counts(3, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, counts)
}

func TestSecondOrder_UpdateBeforeFit(t *testing.T) {
	c, err := NewSecondOrderChain(mustStates(t, 1, 2, 3))
	require.NoError(t, err)

	require.NoError(t, c.Update([][]int{{1, 2, 3}}))
	assert.True(t, c.Fitted())

	counts, err := c.Counts(1, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 4}, counts)
}

func TestSecondOrder_GenerateDeterministicWithSeed(t *testing.T) {
	c := fittedSecondOrder(t, []int{60, 62, 64, 65, 67}, PitchWeighting,
		[]int{60, 62, 64, 65, 67, 65, 64, 62, 60, 64, 67, 60, 65, 62})

	first, err := c.Generate(GenerateOptions{Length: 30, Seed: seed(42)})
	require.NoError(t, err)
	second, err := c.Generate(GenerateOptions{Length: 30, Seed: seed(42)})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 30)
}

func TestSecondOrder_GenerateSlidesContext(t *testing.T) {
	c := fittedSecondOrder(t, []int{1, 2, 3}, PitchWeighting, []int{1, 2, 3, 1, 2, 3})

	seq, err := c.Generate(GenerateOptions{Start: []int{1, 2}, Length: 6, Strategy: ArgMax})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 1, 2, 3}, seq)
}

func TestSecondOrder_GenerateArgMaxTieBreak(t *testing.T) {
	// (1, 2) is followed by 3 and by 1 equally often
	c := fittedSecondOrder(t, []int{1, 2, 3}, PitchWeighting, []int{1, 2, 3}, []int{1, 2, 1})

	seq, err := c.Generate(GenerateOptions{Start: []int{1, 2}, Length: 3, Strategy: ArgMax})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 1}, seq)
}

func TestSecondOrder_GenerateFromUnseenPairUsesUniform(t *testing.T) {
	c := fittedSecondOrder(t, []int{1, 2, 3}, PitchWeighting, []int{1, 2, 3})

	// (3, 3) was never observed, the uniform row still yields a successor
	seq, err := c.Generate(GenerateOptions{Start: []int{3, 3}, Length: 3, Rand: &fixedRand{floats: []float64{0.5}}})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 2}, seq)
}

func TestSecondOrder_GenerateShortLengths(t *testing.T) {
	c := fittedSecondOrder(t, []int{1, 2, 3}, PitchWeighting, []int{1, 2, 3})

	seq, err := c.Generate(GenerateOptions{Start: []int{2, 3}, Length: 1})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, seq)

	seq, err = c.Generate(GenerateOptions{Start: []int{2, 3}, Length: 2})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, seq)

	_, err = c.Generate(GenerateOptions{Start: []int{2, 3}, Length: -1})
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestSecondOrder_GenerateInvalidStart(t *testing.T) {
	c := fittedSecondOrder(t, []int{1, 2, 3}, PitchWeighting, []int{1, 2, 3})

	tests := []struct {
		name  string
		start []int
	}{
		{"first unknown", []int{9, 1}},
		{"second unknown", []int{1, 9}},
		{"single state", []int{1}},
		{"three states", []int{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Generate(GenerateOptions{Start: tt.start, Length: 4})
			assert.ErrorIs(t, err, ErrInvalidStart)
		})
	}
}

func TestSecondOrder_GenerateNotFitted(t *testing.T) {
	c, err := NewSecondOrderChain(mustStates(t, 1, 2))
	require.NoError(t, err)

	_, err = c.Generate(GenerateOptions{Length: 4})
	assert.ErrorIs(t, err, ErrNotFitted)
	_, err = c.Distribution(1, 2)
	assert.ErrorIs(t, err, ErrNotFitted)
	_, err = c.TopPairs(5)
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestSecondOrder_RandomStartCoversAllPairs(t *testing.T) {
	c := fittedSecondOrder(t, []int{1, 2}, PitchWeighting, []int{1, 2, 1})

	// every pair carries mass through the uniform fallback; index 3 is (2, 2)
	seq, err := c.Generate(GenerateOptions{Length: 2, Rand: &fixedRand{ints: []int{3}}})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, seq)

	seq, err = c.Generate(GenerateOptions{Length: 2, Rand: &fixedRand{ints: []int{1}}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seq)
}

func TestSecondOrder_TopPairs(t *testing.T) {
	c := fittedSecondOrder(t, []int{1, 2, 3}, PitchWeighting,
		[]int{1, 2, 3, 1, 2, 3},
		[]int{3, 3, 3},
	)

	top, err := c.TopPairs(2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, Pair{First: 1, Second: 2}, top[0].Pair)
	assert.Equal(t, 8.0, top[0].Total)
	assert.Equal(t, Pair{First: 2, Second: 3}, top[1].Pair)

	all, err := c.TopPairs(-1)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, []Pair{{1, 2}, {2, 3}, {3, 1}, {3, 3}}, c.ObservedPairs())
}
