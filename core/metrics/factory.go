package metrics

import "github.com/FlexMeasures/flexmeasures-sub003/core/factory"

var sinkRegistry = factory.NewRegistry[MetricsSink]()

// RegisterSink adds a metrics sink factory identified by name.
func RegisterSink(name string, f factory.Factory[MetricsSink]) error {
	return sinkRegistry.Register(name, f)
}

// NewSink creates a MetricsSink from the provided configurations. No
// configuration yields a NopSink; multiple sinks are wrapped in a MultiSink.
func NewSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	if len(cfgs) == 1 {
		return sinkRegistry.Create(cfgs[0])
	}
	sinks := make([]MetricsSink, len(cfgs))
	for i, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			return nil, err
		}
		sinks[i] = s
	}
	return NewMultiSink(sinks...), nil
}

// RegisteredSinks returns the names of all known sinks.
func RegisteredSinks() []string {
	return sinkRegistry.Names()
}
