package sensor

import (
	"context"
	"fmt"

	"github.com/kilianp07/sampler/core/factory"
)

var readerRegistry = factory.NewRegistry[Reader]()

// RegisterReader adds a sensor backend factory identified by name.
func RegisterReader(name string, f factory.Factory[Reader]) error {
	return readerRegistry.Register(name, f)
}

// NewReader creates the backend described by cfg.
func NewReader(cfg factory.ModuleConfig) (Reader, error) {
	return readerRegistry.Create(cfg)
}

// Backends lists the registered backend names.
func Backends() []string { return readerRegistry.Names() }

type bounded struct {
	Reader
	max RawSample
}

// Bounded rejects readings above max with ErrOutOfRange. A zero max means
// DefaultMaxRaw.
func Bounded(r Reader, max RawSample) Reader {
	if max == 0 {
		max = DefaultMaxRaw
	}
	return &bounded{Reader: r, max: max}
}

func (b *bounded) ReadRaw(ctx context.Context) (RawSample, error) {
	v, err := b.Reader.ReadRaw(ctx)
	if err != nil {
		return 0, err
	}
	if v > b.max {
		return 0, fmt.Errorf("%w: %d > %d", ErrOutOfRange, v, b.max)
	}
	return v, nil
}
