// Package factory provides a small generic registry used to instantiate
// pluggable modules (sensor backends, metrics sinks) from configuration.
// A module is described by a type string and a map of raw settings; its
// factory decodes the settings into a typed struct and returns the concrete
// implementation.
//
//	reg := factory.NewRegistry[sensor.Reader]()
//	_ = reg.Register("sysfs", func(conf map[string]any) (sensor.Reader, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return openSysfs(c.Path)
//	})
//	r, err := reg.Create(factory.ModuleConfig{Type: "sysfs", Conf: map[string]any{"path": "/sys/..."}})
package factory
