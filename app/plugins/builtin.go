package plugins

import (
	// Schedulers, forecasters and the in-memory and SQLite stores register
	// themselves from their package init functions.
	_ "github.com/FlexMeasures/flexmeasures-sub003/core/forecasting"
	_ "github.com/FlexMeasures/flexmeasures-sub003/core/scheduling"
	_ "github.com/FlexMeasures/flexmeasures-sub003/core/store"

	// Metrics sinks: nop, prometheus, influx.
	_ "github.com/FlexMeasures/flexmeasures-sub003/infra/metrics"
)
