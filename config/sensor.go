package config

import (
	"github.com/kilianp07/sampler/core/factory"
	"github.com/kilianp07/sampler/core/sensor"
)

// SensorConfig selects the sensor backend and the curve applied to its
// readings.
type SensorConfig struct {
	// Type names a registered backend: "simulated" or "sysfs".
	Type string         `json:"type"`
	Conf map[string]any `json:"conf"`
	// Calibration defaults to the LMT86 coefficients.
	Calibration sensor.Calibration `json:"calibration"`
	// MaxRaw rejects readings above it. Defaults to a 12-bit ADC.
	MaxRaw uint16 `json:"max_raw"`
}

// SetDefaults applies sane defaults.
func (c *SensorConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "simulated"
	}
	if c.Calibration.IsZero() {
		c.Calibration = sensor.LMT86
	}
	if c.MaxRaw == 0 {
		c.MaxRaw = uint16(sensor.DefaultMaxRaw)
	}
}

// Validate checks the calibration coefficients.
func (c SensorConfig) Validate() error {
	return c.Calibration.Validate()
}

// Module returns the factory configuration of the backend. The calibration
// and range are handed to backends that synthesize readings.
func (c SensorConfig) Module() factory.ModuleConfig {
	conf := make(map[string]any, len(c.Conf)+2)
	conf["calibration"] = map[string]any{
		"offset":   c.Calibration.Offset,
		"gain":     c.Calibration.Gain,
		"radicand": c.Calibration.Radicand,
		"slope":    c.Calibration.Slope,
	}
	conf["max_raw"] = c.MaxRaw
	for k, v := range c.Conf {
		conf[k] = v
	}
	return factory.ModuleConfig{Type: c.Type, Conf: conf}
}
