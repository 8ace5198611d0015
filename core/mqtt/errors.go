package mqtt

import "errors"

// ErrAckTimeout is returned when an asset does not acknowledge a pushed
// schedule before the deadline.
var ErrAckTimeout = errors.New("mqtt: schedule ack timeout")
