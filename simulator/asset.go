package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// plan is the schedule the asset is currently following.
type plan struct {
	start      time.Time
	resolution time.Duration
	powerKW    []float64
}

// powerAt returns the planned power for the slot containing t, or zero when
// the plan does not cover it.
func (p *plan) powerAt(t time.Time) float64 {
	if p == nil || p.resolution <= 0 || t.Before(p.start) {
		return 0
	}
	idx := int(t.Sub(p.start) / p.resolution)
	if idx < 0 || idx >= len(p.powerKW) {
		return 0
	}
	return p.powerKW[idx]
}

// SimulatedAsset plays a battery behind a meter: it follows received
// schedules, acknowledges them and reports meter readings.
type SimulatedAsset struct {
	ID       string
	SensorID string
	Broker   string
	Strategy AckStrategy
	Interval time.Duration
	Battery  *Battery

	client  paho.Client
	ackCh   chan string
	mu      sync.Mutex
	current *plan
}

// NewSimulatedAsset creates a new asset simulator.
func NewSimulatedAsset(id, sensorID, broker string, strat AckStrategy) *SimulatedAsset {
	return &SimulatedAsset{
		ID:       id,
		SensorID: sensorID,
		Broker:   broker,
		Strategy: strat,
		ackCh:    make(chan string, 50),
	}
}

// Run connects to the broker, follows schedules and publishes readings
// until ctx is done.
func (a *SimulatedAsset) Run(ctx context.Context) error {
	cli, err := newMQTTClient(a.Broker, "sim-"+a.ID)
	if err != nil {
		return err
	}
	a.client = cli
	for i := 0; i < 5; i++ {
		go a.worker(ctx)
	}
	topic := fmt.Sprintf("assets/%s/schedule", a.ID)
	if token := cli.Subscribe(topic, 0, a.onSchedule); token.Wait() && token.Error() != nil {
		cli.Disconnect(250)
		return token.Error()
	}
	a.report(ctx)
	if token := cli.Unsubscribe(topic); token.Wait() && token.Error() != nil {
		log.Printf("%s: unsubscribe: %v", a.ID, token.Error())
	}
	close(a.ackCh)
	cli.Disconnect(250)
	return nil
}

func (a *SimulatedAsset) onSchedule(_ paho.Client, msg paho.Message) {
	var m struct {
		CommandID   string    `json:"command_id"`
		Start       time.Time `json:"start"`
		ResolutionS int       `json:"resolution_s"`
		PowerKW     []float64 `json:"power_kw"`
	}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		log.Printf("%s: decode schedule: %v", a.ID, err)
		return
	}
	a.mu.Lock()
	a.current = &plan{
		start:      m.Start,
		resolution: time.Duration(m.ResolutionS) * time.Second,
		powerKW:    m.PowerKW,
	}
	a.mu.Unlock()
	select {
	case a.ackCh <- m.CommandID:
	default:
		log.Printf("%s: ack queue full, dropping command %s", a.ID, m.CommandID)
	}
}

// report applies the current plan to the battery and publishes the metered
// power every interval.
func (a *SimulatedAsset) report(ctx context.Context) {
	interval := a.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.mu.Lock()
			target := a.current.powerAt(now)
			a.mu.Unlock()
			actual := target
			if a.Battery != nil {
				actual = a.Battery.ApplyPower(target, interval)
			}
			a.publishReading(now, actual)
		}
	}
}

func (a *SimulatedAsset) publishReading(ts time.Time, powerKW float64) {
	payload, err := json.Marshal(struct {
		TS     time.Time `json:"ts"`
		Values []float64 `json:"values"`
	}{TS: ts, Values: []float64{powerKW}})
	if err != nil {
		log.Printf("%s: marshal reading: %v", a.ID, err)
		return
	}
	topic := fmt.Sprintf("sensors/%s/readings", a.SensorID)
	token := a.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		log.Printf("%s: reading publish timeout", a.ID)
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("%s: publish reading: %v", a.ID, err)
	}
}

func newMQTTClient(broker, clientID string) (paho.Client, error) {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.AutoReconnect = true
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return cli, nil
}

func (a *SimulatedAsset) worker(ctx context.Context) {
	for {
		select {
		case cmdID, ok := <-a.ackCh:
			if !ok {
				return
			}
			a.Strategy.Ack(ctx, a.client, a.ID, cmdID)
		case <-ctx.Done():
			return
		}
	}
}
