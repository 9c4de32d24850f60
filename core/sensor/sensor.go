// Package sensor defines the raw analog reading produced by a temperature
// sensor backend and the closed-form calibration that turns it into degrees
// Celsius.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// RawSample is an uncalibrated reading in the backend's native domain. For the
// default ADC setup it is the calibrated 12-bit ADC output in millivolts.
type RawSample uint16

// DefaultMaxRaw is the upper bound of a 12-bit ADC.
const DefaultMaxRaw RawSample = 4095

// ErrOutOfRange is returned by backends for readings above their configured domain.
var ErrOutOfRange = errors.New("sensor: raw value out of range")

// Reader is a blocking source of raw samples. Implementations are owned by a
// single goroutine and need not be safe for concurrent use.
type Reader interface {
	ReadRaw(ctx context.Context) (RawSample, error)
	Close() error
}

// Calibration describes the curve
//
//	value = Offset + Gain * sqrt(Radicand - Slope*raw)
//
// which is the analytic inverse of a sensor's quadratic transfer function.
type Calibration struct {
	Offset   float64 `json:"offset"`
	Gain     float64 `json:"gain"`
	Radicand float64 `json:"radicand"`
	Slope    float64 `json:"slope"`
}

// LMT86 is the TI LMT86 analog temperature sensor curve (datasheet section
// 8.3.1) with raw expressed in millivolts.
var LMT86 = Calibration{
	Offset:   -1538.88,
	Gain:     144.092,
	Radicand: 143.217,
	Slope:    0.01388,
}

// Convert maps raw to a physical value. A negative radicand is clamped to zero
// so that every input produces a finite result.
func (c Calibration) Convert(raw RawSample) float64 {
	r := c.Radicand - c.Slope*float64(raw)
	if r < 0 {
		r = 0
	}
	return c.Offset + c.Gain*math.Sqrt(r)
}

// Invert returns the raw reading that converts to value, rounded to the
// nearest integer and clamped to [0, maxRaw].
func (c Calibration) Invert(value float64, maxRaw RawSample) RawSample {
	x := (value - c.Offset) / c.Gain
	if x < 0 {
		return maxRaw
	}
	raw := (c.Radicand - x*x) / c.Slope
	switch {
	case math.IsNaN(raw) || raw < 0:
		return 0
	case raw > float64(maxRaw):
		return maxRaw
	}
	return RawSample(math.Round(raw))
}

// Domain returns the largest raw value for which the radicand stays
// non-negative.
func (c Calibration) Domain() float64 {
	if c.Slope == 0 {
		return math.Inf(1)
	}
	return c.Radicand / c.Slope
}

// Validate reports coefficient sets that cannot describe a decreasing curve.
func (c Calibration) Validate() error {
	if c.Gain <= 0 {
		return fmt.Errorf("calibration: gain must be positive, got %v", c.Gain)
	}
	if c.Slope <= 0 {
		return fmt.Errorf("calibration: slope must be positive, got %v", c.Slope)
	}
	if c.Radicand <= 0 {
		return fmt.Errorf("calibration: radicand must be positive, got %v", c.Radicand)
	}
	return nil
}

// IsZero reports whether no coefficient was configured.
func (c Calibration) IsZero() bool { return c == Calibration{} }
