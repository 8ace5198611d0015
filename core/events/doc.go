// Package events defines the platform events emitted on the event bus.
//
// Available event types:
//   - BeliefsAddedEvent: new sensor data recorded
//   - JobEvent: job state transition in the job queue
//   - ScheduleComputedEvent: a scheduler produced a plan for an asset
//   - ForecastComputedEvent: a forecaster produced beliefs for a sensor
package events
