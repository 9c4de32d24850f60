package sensor

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	coresensor "github.com/kilianp07/sampler/core/sensor"
)

// ErrSimulatedFailure is returned on the reads picked by FailureRate.
var ErrSimulatedFailure = errors.New("sensor: simulated read failure")

// SimulatedConfig shapes the synthetic temperature signal.
type SimulatedConfig struct {
	BaseCelsius      float64       `json:"base_celsius"`
	AmplitudeCelsius float64       `json:"amplitude_celsius"`
	Period           time.Duration `json:"period"`
	NoiseCelsius     float64       `json:"noise_celsius"`
	FailureRate      float64       `json:"failure_rate"`
	ReadDelay        time.Duration `json:"read_delay"`
	Seed             uint64        `json:"seed"`
	MaxRaw           uint16        `json:"max_raw"`
	// Calibration is the curve readings are generated from. Zero means LMT86.
	Calibration coresensor.Calibration `json:"calibration"`
}

// SetDefaults fills a room-temperature signal drifting slowly around 25 °C.
func (c *SimulatedConfig) SetDefaults() {
	if c.BaseCelsius == 0 && c.AmplitudeCelsius == 0 {
		c.BaseCelsius = 25
		c.AmplitudeCelsius = 2
	}
	if c.Period <= 0 {
		c.Period = time.Minute
	}
	if c.MaxRaw == 0 {
		c.MaxRaw = uint16(coresensor.DefaultMaxRaw)
	}
	if c.Calibration.IsZero() {
		c.Calibration = coresensor.LMT86
	}
}

// Simulated produces raw readings by inverting the calibration curve around
// a sine-shaped temperature with gaussian noise.
type Simulated struct {
	cfg   SimulatedConfig
	clock clock.Clock
	start time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated creates a simulated backend driven by clk.
func NewSimulated(cfg SimulatedConfig, clk clock.Clock) (*Simulated, error) {
	cfg.SetDefaults()
	if cfg.FailureRate < 0 || cfg.FailureRate > 1 {
		return nil, errors.New("sensor: failure_rate must be within [0, 1]")
	}
	if err := cfg.Calibration.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Simulated{
		cfg:   cfg,
		clock: clk,
		start: clk.Now(),
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// Temperature returns the noiseless signal at t.
func (s *Simulated) Temperature(t time.Time) float64 {
	phase := 2 * math.Pi * float64(t.Sub(s.start)) / float64(s.cfg.Period)
	return s.cfg.BaseCelsius + s.cfg.AmplitudeCelsius*math.Sin(phase)
}

func (s *Simulated) ReadRaw(ctx context.Context) (coresensor.RawSample, error) {
	if s.cfg.ReadDelay > 0 {
		select {
		case <-s.clock.After(s.cfg.ReadDelay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	fail := s.cfg.FailureRate > 0 && s.rng.Float64() < s.cfg.FailureRate
	noise := s.rng.NormFloat64() * s.cfg.NoiseCelsius
	s.mu.Unlock()
	if fail {
		return 0, ErrSimulatedFailure
	}
	value := s.Temperature(s.clock.Now()) + noise
	return s.cfg.Calibration.Invert(value, coresensor.RawSample(s.cfg.MaxRaw)), nil
}

func (s *Simulated) Close() error { return nil }
