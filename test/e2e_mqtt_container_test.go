package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/FlexMeasures/flexmeasures-sub003/app"
	"github.com/FlexMeasures/flexmeasures-sub003/config"
	"github.com/FlexMeasures/flexmeasures-sub003/core/model"
	"github.com/FlexMeasures/flexmeasures-sub003/core/store"
)

func waitForMQTTReady(broker string, timeout time.Duration) error {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("probe")
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		cli := paho.NewClient(opts)
		token := cli.Connect()
		token.Wait()
		if token.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		lastErr = token.Error()
		time.Sleep(100 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for broker")
	}
	return lastErr
}

func startMosquitto(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	conf := `listener 1883
allow_anonymous true
persistence false
log_dest stdout
log_type error
log_type warning
log_type notice
`
	dir := t.TempDir()
	path := filepath.Join(dir, "mosquitto.conf")
	if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{
			{
				HostFilePath:      path,
				ContainerFilePath: "/mosquitto/config/mosquitto.conf",
				FileMode:          0644,
			},
		},
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("container start: %v", err)
	}
	host, err := cont.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := cont.MappedPort(ctx, "1883")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	broker := fmt.Sprintf("tcp://%s:%s", host, port.Port())
	if err := waitForMQTTReady(broker, 5*time.Second); err != nil {
		t.Logf("mosquitto not ready at %s: %v", broker, err)
		t.Skip("Mosquitto not ready after retries")
	}
	return cont, broker
}

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	if err := l.Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}
	return addr
}

// connectAssetSim connects a client that plays the battery: it acknowledges
// every schedule it receives and forwards the payload on a channel.
func connectAssetSim(broker string, t *testing.T) (paho.Client, <-chan []byte) {
	t.Helper()
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("asset-sim")
	cli := paho.NewClient(opts)
	var connErr error
	for i := 0; i < 5; i++ {
		token := cli.Connect()
		token.Wait()
		connErr = token.Error()
		if connErr == nil {
			break
		}
		time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
	}
	if connErr != nil {
		t.Logf("asset sim connect failed: %v", connErr)
		t.Skip("Mosquitto not ready after retries")
	}
	received := make(chan []byte, 4)
	if token := cli.Subscribe("assets/bat1/schedule", 0, func(_ paho.Client, m paho.Message) {
		var cmd struct {
			CommandID string `json:"command_id"`
		}
		_ = json.Unmarshal(m.Payload(), &cmd)
		ack, _ := json.Marshal(map[string]string{"command_id": cmd.CommandID})
		cli.Publish("assets/bat1/ack", 0, false, ack)
		received <- m.Payload()
	}); token.Wait() && token.Error() != nil {
		t.Fatalf("subscribe: %v", token.Error())
	}
	return cli, received
}

func seedPlatform(t *testing.T, svc *app.Service) {
	t.Helper()
	ctx := context.Background()
	st := svc.Store()
	if err := st.AddSource(ctx, model.Source{ID: "da-prices", Name: "day-ahead", Kind: model.SourceMeasurement}); err != nil {
		t.Fatalf("add source: %v", err)
	}
	if err := st.AddSensor(ctx, model.Sensor{ID: "price-da", Unit: "EUR/MWh", EventResolution: 15 * time.Minute}); err != nil {
		t.Fatalf("add price sensor: %v", err)
	}
	if err := st.AddSensor(ctx, model.Sensor{ID: "meter1", Unit: "kW", EventResolution: 15 * time.Minute}); err != nil {
		t.Fatalf("add meter: %v", err)
	}
	if err := st.AddSensor(ctx, model.Sensor{ID: "bat1-power", Unit: "kW", EventResolution: 15 * time.Minute, AssetID: "bat1"}); err != nil {
		t.Fatalf("add power sensor: %v", err)
	}
	if err := st.AddAsset(ctx, model.Asset{
		ID: "bat1", Kind: model.AssetBattery, SensorID: "bat1-power",
		BatteryKWh: 40, MaxPowerKW: 10, MinPowerKW: 10,
		SoCMin: 0.1, SoCMax: 0.9, SoCAtStart: 0.5,
	}); err != nil {
		t.Fatalf("add asset: %v", err)
	}
	now := time.Now()
	if err := st.AddBeliefs(ctx, []model.Belief{{
		SensorID:   "price-da",
		EventStart: now.Truncate(15 * time.Minute),
		BeliefTime: now,
		SourceID:   "da-prices",
		Value:      65,
	}}); err != nil {
		t.Fatalf("seed prices: %v", err)
	}
}

func waitForCondition(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

func waitForAPI(base string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(base + "/api/v3/health")
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(25 * time.Millisecond)
	}
	return fmt.Errorf("api not ready at %s", base)
}

// TestPlatformWithMQTTContainer drives the full loop against a real broker:
// telemetry arrives over MQTT, a schedule is triggered over HTTP, and the
// plan is pushed back to the asset and acknowledged.
func TestPlatformWithMQTTContainer(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}
	ctx := context.Background()

	cont, broker := startMosquitto(ctx, t)
	defer func() { _ = cont.Terminate(ctx) }()

	assetCli, received := connectAssetSim(broker, t)
	defer assetCli.Disconnect(100)

	apiAddr := freePort(t)
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.API.Addr = apiAddr
	cfg.Scheduling.PriceSensorID = "price-da"
	cfg.Scheduling.HorizonHours = 2
	cfg.MQTT.Broker = broker
	cfg.MQTT.ClientID = "flexmeasures-e2e"
	cfg.MQTT.AckTopic = "assets/+/ack"

	svc, err := app.New(cfg)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	defer func() { _ = svc.Close() }()
	seedPlatform(t, svc)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = svc.Run(runCtx) }()

	base := "http://" + apiAddr
	if err := waitForAPI(base, 5*time.Second); err != nil {
		t.Fatalf("api: %v", err)
	}

	// Telemetry over the broker lands in the store as measurement beliefs.
	telemetry, _ := json.Marshal(map[string]any{
		"ts":     time.Now().Truncate(15 * time.Minute).Format(time.RFC3339),
		"values": []float64{1.5, 2.5},
	})
	pubOpts := paho.NewClientOptions().AddBroker(broker).SetClientID("meter-sim")
	pubCli := paho.NewClient(pubOpts)
	if token := pubCli.Connect(); token.Wait() && token.Error() != nil {
		t.Fatalf("meter connect: %v", token.Error())
	}
	defer pubCli.Disconnect(100)
	pubCli.Publish("sensors/meter1/readings", 0, false, telemetry)

	ok := waitForCondition(5*time.Second, func() bool {
		beliefs, err := svc.Store().Search(ctx, store.SearchParams{SensorID: "meter1"})
		return err == nil && len(beliefs) == 2
	})
	if !ok {
		t.Fatal("telemetry beliefs never stored")
	}

	// Trigger a schedule over the API and poll until done.
	resp, err := http.Post(base+"/api/v3/assets/bat1/schedules/trigger", "application/json", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("trigger status %d: %s", resp.StatusCode, body)
	}
	var trig struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(body, &trig); err != nil {
		t.Fatalf("trigger body: %v", err)
	}

	var schedule []byte
	ok = waitForCondition(10*time.Second, func() bool {
		resp, err := http.Get(base + "/api/v3/assets/bat1/schedules/" + trig.JobID)
		if err != nil {
			return false
		}
		data, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			schedule = data
			return true
		}
		return resp.StatusCode == http.StatusConflict
	})
	if !ok || schedule == nil {
		t.Fatal("schedule job never finished")
	}
	if !strings.Contains(string(schedule), `"power_kw"`) {
		t.Fatalf("schedule body missing power series: %s", schedule)
	}

	// The plan reaches the asset over MQTT.
	select {
	case payload := <-received:
		var pushed struct {
			AssetID string    `json:"asset_id"`
			PowerKW []float64 `json:"power_kw"`
		}
		if err := json.Unmarshal(payload, &pushed); err != nil {
			t.Fatalf("pushed payload: %v", err)
		}
		if pushed.AssetID != "bat1" {
			t.Fatalf("pushed asset = %s", pushed.AssetID)
		}
		if len(pushed.PowerKW) != 8 {
			t.Fatalf("pushed steps = %d, want 8", len(pushed.PowerKW))
		}
	case <-time.After(10 * time.Second):
		t.Fatal("schedule never published to asset")
	}
}
