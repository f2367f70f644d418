package scheduler

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semevents/errors"
)

func TestConstant(t *testing.T) {
	g := Constant(250 * time.Millisecond)
	before := time.Now()
	first := g.Next()
	second := g.Next()

	assert.WithinDuration(t, before.Add(250*time.Millisecond), first, 50*time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, second.Sub(first))
}

func TestExponential(t *testing.T) {
	g := Exponential(100*time.Millisecond, rand.New(rand.NewPCG(1, 2)))

	prev := g.Next()
	var total time.Duration
	const n = 5000
	for i := 0; i < n; i++ {
		next := g.Next()
		require.False(t, next.Before(prev), "fire times never go backwards")
		total += next.Sub(prev)
		prev = next
	}
	mean := total / n
	assert.InDelta(t, float64(100*time.Millisecond), float64(mean), float64(10*time.Millisecond))
}

func TestParseDistribution(t *testing.T) {
	g, err := ParseDistribution("const[0.5]")
	require.NoError(t, err)
	a, b := g.Next(), g.Next()
	assert.Equal(t, 500*time.Millisecond, b.Sub(a))

	g, err = ParseDistribution(" exp [2] ")
	require.NoError(t, err)
	assert.NotNil(t, g)

	invalid := []string{
		"",
		"exp",
		"exp[1",
		"exp1]",
		"exp[]",
		"exp[a]",
		"exp[1,2]",
		"const[1, 2]",
		"const[0]",
		"exp[-1]",
		"normal[1]",
	}
	for _, desc := range invalid {
		_, err := ParseDistribution(desc)
		assert.True(t, errors.IsConfiguration(err), "%q: %v", desc, err)
	}
}

func TestTimeGeneratorFunc(t *testing.T) {
	at := time.Unix(100, 0)
	assert.Equal(t, at, TimeGeneratorFunc(func() time.Time { return at }).Next())
}
