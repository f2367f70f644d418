package scheduler

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/c360/semevents/errors"
	"github.com/c360/semevents/pkg/timestamp"
)

// TimeGenerator yields absolute fire times. When a scheduler has one, it
// replaces the fire times derived from event timestamps.
type TimeGenerator interface {
	Next() time.Time
}

// TimeGeneratorFunc adapts a function to TimeGenerator.
type TimeGeneratorFunc func() time.Time

// Next calls f.
func (f TimeGeneratorFunc) Next() time.Time { return f() }

// arrivals accumulates inter-arrival gaps from the time of the first call.
type arrivals struct {
	last time.Time
	gap  func() time.Duration
	now  func() time.Time
}

func (a *arrivals) Next() time.Time {
	if a.last.IsZero() {
		a.last = a.now()
	}
	a.last = a.last.Add(a.gap())
	return a.last
}

// Constant yields fire times spaced by interval, starting one interval
// after the first call.
func Constant(interval time.Duration) TimeGenerator {
	return &arrivals{
		gap: func() time.Duration { return interval },
		now: time.Now,
	}
}

// Exponential yields fire times with exponentially distributed gaps of the
// given mean: a Poisson arrival process. A nil rng uses the global source.
func Exponential(mean time.Duration, rng *rand.Rand) TimeGenerator {
	expFloat := rand.ExpFloat64
	if rng != nil {
		expFloat = rng.ExpFloat64
	}
	return &arrivals{
		gap: func() time.Duration { return time.Duration(expFloat() * float64(mean)) },
		now: time.Now,
	}
}

// ParseDistribution builds a generator from a description such as
// "exp[0.5]" or "const[2]". Parameters are in seconds.
func ParseDistribution(desc string) (TimeGenerator, error) {
	desc = strings.TrimSpace(desc)
	open := strings.IndexByte(desc, '[')
	if open < 0 || !strings.HasSuffix(desc, "]") {
		return nil, errors.Configf("distribution %q: expected name[params]", desc)
	}
	name := strings.TrimSpace(desc[:open])

	var params []float64
	for _, field := range strings.Split(desc[open+1:len(desc)-1], ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, errors.Configf("distribution %q: invalid parameter %q", desc, field)
		}
		params = append(params, v)
	}

	switch name {
	case "exp", "const":
		if len(params) != 1 {
			return nil, errors.Configf("distribution %q: %s needs 1 parameter, got %d", desc, name, len(params))
		}
		if params[0] <= 0 {
			return nil, errors.Configf("distribution %q: mean must be positive", desc)
		}
	default:
		return nil, errors.Configf("distribution %q: unknown distribution %q", desc, name)
	}

	mean := timestamp.SecondsDuration(params[0])
	if name == "exp" {
		return Exponential(mean, nil), nil
	}
	return Constant(mean), nil
}
