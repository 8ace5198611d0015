package metrics

import "github.com/FlexMeasures/flexmeasures-sub003/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
}
