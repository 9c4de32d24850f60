package scenarios

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/sampler/core/sensor"
)

type Expected struct {
	Rejected  int   `yaml:"rejected"`
	Published int   `yaml:"published"`
	Skipped   int   `yaml:"skipped"`
	Dropped   int   `yaml:"dropped"`
	Ticks     []int `yaml:"ticks,omitempty"`
}

// Scenario is a scripted batch of command payloads played against a sampler
// wired to a fake sensor and a fake broker.
type Scenario struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Raw         uint16   `yaml:"raw"`
	Commands    []string `yaml:"commands"`
	// SensorFailReads and PublishFailCalls hold zero-based call indexes that
	// return an error, counted across the whole scenario.
	SensorFailReads  []int    `yaml:"sensor_fail_reads,omitempty"`
	PublishFailCalls []int    `yaml:"publish_fail_calls,omitempty"`
	Expected         Expected `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Raw == 0 {
		sc.Raw = uint16(sensor.LMT86.Invert(25, sensor.DefaultMaxRaw))
	}
	return &sc, nil
}

func indexSet(idx []int) map[int]bool {
	out := make(map[int]bool, len(idx))
	for _, i := range idx {
		out[i] = true
	}
	return out
}
