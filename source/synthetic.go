package source

import (
	"context"
	"io"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/c360/semevents/errors"
	"github.com/c360/semevents/event"
)

// Synthetic event kinds
const (
	KindJSON = "json"
	KindTest = "test"
)

// SyntheticConfig describes a generated event sequence.
type SyntheticConfig struct {
	SourceID      string
	ApplicationID string
	// Kind is KindJSON (sensor readings) or KindTest (benchmark events).
	Kind string
	// Count bounds the sequence; zero means unbounded.
	Count int
	// Start is the timestamp of the first event; zero means now.
	Start time.Time
	// Interval separates consecutive event timestamps. Timestamps have
	// second precision, so sub-second intervals collapse.
	Interval time.Duration
	// Seed makes the generated content reproducible.
	Seed int64
}

// Validate checks the configuration.
func (c SyntheticConfig) Validate() error {
	if c.SourceID == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "SyntheticConfig", "Validate", "source_id is required")
	}
	if c.Kind != KindJSON && c.Kind != KindTest {
		return errors.Configf("synthetic kind must be %q or %q, got %q", KindJSON, KindTest, c.Kind)
	}
	if c.Count < 0 {
		return errors.Configf("synthetic count cannot be negative")
	}
	if c.Interval < 0 {
		return errors.Configf("synthetic interval cannot be negative")
	}
	return nil
}

// Synthetic generates events with fake sensor content.
type Synthetic struct {
	cfg   SyntheticConfig
	faker *gofakeit.Faker
	seq   int64
	// sensors is a fixed pool of sensor names so readings repeat per sensor
	sensors []string
}

// NewSynthetic validates cfg and returns a generator.
func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Now()
	}

	faker := gofakeit.New(cfg.Seed)
	sensors := make([]string, 8)
	for i := range sensors {
		sensors[i] = faker.Word() + "-" + faker.DigitN(3)
	}
	return &Synthetic{cfg: cfg, faker: faker, sensors: sensors}, nil
}

// Next generates the next event, or io.EOF once Count events were produced.
func (s *Synthetic) Next(ctx context.Context) (*event.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.cfg.Count > 0 && s.seq >= int64(s.cfg.Count) {
		return nil, io.EOF
	}

	seq := s.seq
	s.seq++
	at := s.cfg.Start.Add(time.Duration(seq) * s.cfg.Interval)
	opts := []event.Option{event.WithTime(at)}
	if s.cfg.ApplicationID != "" {
		opts = append(opts, event.WithApplicationID(s.cfg.ApplicationID))
	}

	if s.cfg.Kind == KindTest {
		return event.NewTestEvent(s.cfg.SourceID, seq, opts...)
	}

	reading := map[string]any{
		"sensor":      s.sensors[s.faker.Number(0, len(s.sensors)-1)],
		"city":        s.faker.City(),
		"latitude":    s.faker.Latitude(),
		"longitude":   s.faker.Longitude(),
		"temperature": s.faker.Float64Range(-10, 40),
		"humidity":    s.faker.Float64Range(0, 100),
		"sequence":    seq,
	}
	return event.New(s.cfg.SourceID, event.JSONSyntax, event.JSONBody{Value: reading},
		append(opts, event.WithEventType("reading"))...)
}
