package sensor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	coresensor "github.com/kilianp07/sampler/core/sensor"
)

// SysfsConfig points at a Linux IIO channel such as
// /sys/bus/iio/devices/iio:device0/in_voltage0_raw.
type SysfsConfig struct {
	Path string `json:"path"`
	// ScalePath optionally names the in_voltageN_scale file. When set it
	// overrides Scale on every read.
	ScalePath string  `json:"scale_path"`
	Scale     float64 `json:"scale"`
	Offset    float64 `json:"offset"`
}

// Sysfs reads an ADC channel exposed by the kernel IIO subsystem and converts
// it to millivolts with (raw + Offset) * Scale.
type Sysfs struct {
	cfg SysfsConfig
}

// NewSysfs checks that the channel file is readable.
func NewSysfs(cfg SysfsConfig) (*Sysfs, error) {
	if cfg.Path == "" {
		return nil, errors.New("sensor: sysfs path is required")
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("sensor: %w", err)
	}
	return &Sysfs{cfg: cfg}, nil
}

func readNumber(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

func (s *Sysfs) ReadRaw(ctx context.Context) (coresensor.RawSample, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	raw, err := readNumber(s.cfg.Path)
	if err != nil {
		return 0, fmt.Errorf("sensor: %w", err)
	}
	scale := s.cfg.Scale
	if s.cfg.ScalePath != "" {
		if scale, err = readNumber(s.cfg.ScalePath); err != nil {
			return 0, fmt.Errorf("sensor: %w", err)
		}
	}
	mv := math.Round((raw + s.cfg.Offset) * scale)
	if mv < 0 || mv > math.MaxUint16 {
		return 0, fmt.Errorf("%w: %v mV", coresensor.ErrOutOfRange, mv)
	}
	return coresensor.RawSample(mv), nil
}

func (s *Sysfs) Close() error { return nil }
