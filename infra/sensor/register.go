package sensor

import (
	"github.com/benbjohnson/clock"

	"github.com/kilianp07/sampler/core/factory"
	coresensor "github.com/kilianp07/sampler/core/sensor"
)

// init registers the built-in backends.
func init() {
	_ = coresensor.RegisterReader("simulated", func(conf map[string]any) (coresensor.Reader, error) {
		var c SimulatedConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		sim, err := NewSimulated(c, clock.New())
		if err != nil {
			return nil, err
		}
		return sim, nil
	})

	_ = coresensor.RegisterReader("sysfs", func(conf map[string]any) (coresensor.Reader, error) {
		var c SysfsConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		s, err := NewSysfs(c)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}
