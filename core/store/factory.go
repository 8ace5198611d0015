package store

import "github.com/FlexMeasures/flexmeasures-sub003/core/factory"

var registry = factory.NewRegistry[Store]()

// Register adds a store backend factory identified by name. Plugins may call
// this at init time to provide additional backends.
func Register(name string, f factory.Factory[Store]) error {
	return registry.Register(name, f)
}

// New creates a Store from the provided configuration. An empty type selects
// the in-memory backend.
func New(cfg factory.ModuleConfig) (Store, error) {
	if cfg.Type == "" {
		return NewMemoryStore(), nil
	}
	return registry.Create(cfg)
}

// Registered returns the names of all known store backends.
func Registered() []string {
	return registry.Names()
}

func init() {
	_ = Register("memory", func(map[string]any) (Store, error) {
		return NewMemoryStore(), nil
	})
	_ = Register("sqlite", func(conf map[string]any) (Store, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			c.Path = "flexmeasures.db"
		}
		return NewSQLiteStore(c.Path)
	})
}
