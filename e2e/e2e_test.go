package e2e

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/sampler/app"
	"github.com/kilianp07/sampler/config"
	"github.com/kilianp07/sampler/core/factory"
	"github.com/kilianp07/sampler/test/util"
)

// Test_E2E_MeasureOverBroker drives the service through a real Mosquitto
// broker and checks the samples land in InfluxDB.
func Test_E2E_MeasureOverBroker(t *testing.T) {
	util.RequireDocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	broker, stopBroker, err := util.StartMosquitto(ctx)
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	defer stopBroker()
	setup := util.InfluxSetup{Org: "e2e_org", Bucket: "e2e_bucket", Token: "e2e-token"}
	influxURL, stopInflux, err := util.StartInflux(ctx, setup)
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	defer stopInflux()

	cfg := config.Default()
	cfg.MQTT.Broker = broker
	cfg.MQTT.CommandTopic = "e2e/sensor/command"
	cfg.MQTT.ResponseTopic = "e2e/sensor/response"
	cfg.Sensor.Conf = map[string]any{"seed": 5, "noise_celsius": 0.1}
	cfg.RunLog.Enabled = true
	cfg.RunLog.Path = filepath.Join(t.TempDir(), "runs.jsonl")
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "influx", Conf: map[string]any{
		"url": influxURL, "token": setup.Token, "org": setup.Org, "bucket": setup.Bucket, "device": "e2e",
	}}}
	require.NoError(t, cfg.Validate())

	svc, err := app.New(cfg)
	require.NoError(t, err)
	defer svc.Close() //nolint:errcheck
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = svc.Run(runCtx) }()

	var (
		mu    sync.Mutex
		lines []string
	)
	probe := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("e2e-probe"))
	tok := probe.Connect()
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())
	defer probe.Disconnect(100)
	tok = probe.Subscribe(cfg.MQTT.ResponseTopic, 1, func(_ paho.Client, m paho.Message) {
		mu.Lock()
		lines = append(lines, string(m.Payload()))
		mu.Unlock()
	})
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())

	tok = probe.Publish(cfg.MQTT.CommandTopic, 0, false, "measure:3,50")
	require.True(t, tok.WaitTimeout(5*time.Second))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(lines) >= 3
	}, 10*time.Second, 20*time.Millisecond)

	mu.Lock()
	got := append([]string(nil), lines...)
	mu.Unlock()
	require.Len(t, got, 3)
	last := int64(-1)
	for i, line := range got {
		parts := strings.Split(line, ",")
		require.Len(t, parts, 3, line)
		assert.Equal(t, strconv.Itoa(2-i), parts[0])
		temp, err := strconv.ParseFloat(parts[1], 64)
		require.NoError(t, err)
		assert.InDelta(t, 25, temp, 3)
		up, err := strconv.ParseInt(parts[2], 10, 64)
		require.NoError(t, err)
		assert.Greater(t, up, last)
		last = up
	}

	cli := NewInfluxClient(influxURL, setup.Org, setup.Bucket, setup.Token)
	defer cli.Close()
	require.Eventually(t, func() bool {
		vals, err := cli.FieldValues(ctx, "temperature_sample", "value")
		return err == nil && len(vals) == 3
	}, 10*time.Second, 200*time.Millisecond)
}
