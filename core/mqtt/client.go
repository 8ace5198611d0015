package mqtt

import (
	"time"

	"github.com/FlexMeasures/flexmeasures-sub003/core/scheduling"
)

// Publisher represents an MQTT client capable of sending computed schedules
// to assets and waiting for acknowledgments.
type Publisher interface {
	// SendSchedule publishes a schedule to the given asset and returns the
	// command identifier used to track the acknowledgment.
	SendSchedule(assetID string, sched scheduling.Schedule) (commandID string, err error)

	// WaitForAck waits for an acknowledgment for the provided command
	// identifier or until the timeout expires.
	WaitForAck(commandID string, timeout time.Duration) (bool, error)
}
