// Package plugins links the built-in schedulers, forecasters, store backends
// and metrics sinks into the binary. Importing it is enough to make every
// builtin available by name through the factory registries.
package plugins

import (
	"sort"

	"github.com/FlexMeasures/flexmeasures-sub003/core/forecasting"
	"github.com/FlexMeasures/flexmeasures-sub003/core/metrics"
	"github.com/FlexMeasures/flexmeasures-sub003/core/scheduling"
	"github.com/FlexMeasures/flexmeasures-sub003/core/store"
)

// Builtins maps each extension point to the names registered for it.
func Builtins() map[string][]string {
	out := map[string][]string{
		"schedulers":  scheduling.Registered(),
		"forecasters": forecasting.Registered(),
		"stores":      store.Registered(),
		"sinks":       metrics.RegisteredSinks(),
	}
	for _, names := range out {
		sort.Strings(names)
	}
	return out
}
