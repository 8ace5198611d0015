package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/FlexMeasures/flexmeasures-sub003/core/events"
	"github.com/FlexMeasures/flexmeasures-sub003/core/model"
	"github.com/FlexMeasures/flexmeasures-sub003/core/store"
	"github.com/FlexMeasures/flexmeasures-sub003/infra/logger"
	"github.com/FlexMeasures/flexmeasures-sub003/internal/eventbus"
)

// telemetryTopic matches readings for any sensor.
const telemetryTopic = "sensors/+/readings"

// reading is the wire format published by meters and gateways. Values cover
// consecutive events at the sensor's resolution starting at TS.
type reading struct {
	TS     time.Time `json:"ts"`
	Values []float64 `json:"values"`
}

// Ingestor subscribes to sensor telemetry topics and appends measurement
// beliefs to the store. Unknown sensors are dropped with a warning.
type Ingestor struct {
	client   *PahoClient
	store    store.Store
	bus      eventbus.EventBus
	sourceID string
	log      logger.Logger
}

// NewIngestor wires a telemetry ingestor on top of a connected client. The
// bus may be nil.
func NewIngestor(client *PahoClient, st store.Store, bus eventbus.EventBus, sourceID string) *Ingestor {
	return &Ingestor{
		client:   client,
		store:    st,
		bus:      bus,
		sourceID: sourceID,
		log:      logger.New("mqtt_ingest"),
	}
}

// Start subscribes to the telemetry topic. Messages are handled until the
// client disconnects.
func (in *Ingestor) Start(ctx context.Context) error {
	qos := byte(0)
	if q, ok := in.client.qos["readings"]; ok {
		qos = q
	}
	token := in.client.cli.Subscribe(telemetryTopic, qos, func(_ paho.Client, msg paho.Message) {
		in.handle(ctx, msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	in.log.Infof("subscribed to %s", telemetryTopic)
	return nil
}

// handle parses one telemetry message and appends its beliefs.
func (in *Ingestor) handle(ctx context.Context, topic string, payload []byte) {
	sensorID, ok := sensorFromTopic(topic)
	if !ok {
		in.log.Warnf("unexpected topic %s", topic)
		return
	}
	var r reading
	if err := json.Unmarshal(payload, &r); err != nil {
		in.log.Errorf("decode reading on %s: %v", topic, err)
		return
	}
	if r.TS.IsZero() || len(r.Values) == 0 {
		in.log.Warnf("empty reading on %s", topic)
		return
	}
	sensor, err := in.store.GetSensor(ctx, sensorID)
	if err != nil {
		in.log.Warnf("reading for unknown sensor %s dropped", sensorID)
		return
	}

	now := time.Now()
	beliefs := make([]model.Belief, 0, len(r.Values))
	for i, v := range r.Values {
		beliefs = append(beliefs, model.Belief{
			SensorID:   sensor.ID,
			EventStart: r.TS.Add(time.Duration(i) * sensor.EventResolution),
			BeliefTime: now,
			SourceID:   in.sourceID,
			Value:      v,
		})
	}
	if err := in.store.AddBeliefs(ctx, beliefs); err != nil {
		in.log.Errorf("store beliefs for %s: %v", sensorID, err)
		return
	}
	if in.bus != nil {
		in.bus.Publish(events.BeliefsAddedEvent{
			SensorID: sensor.ID,
			SourceID: in.sourceID,
			Count:    len(beliefs),
			Time:     now,
		})
	}
	in.log.Debugf("ingested %d values for %s", len(beliefs), sensorID)
}

// sensorFromTopic extracts the sensor ID from a sensors/{id}/readings topic.
func sensorFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "sensors" || parts[2] != "readings" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
