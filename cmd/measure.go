package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/sampler/core/command"
	"github.com/kilianp07/sampler/infra/mqtt"
)

var (
	measureCount    uint16
	measureInterval uint16
	measureTimeout  time.Duration
)

var measureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Send a measure command and print the sample lines",
	Long: `Send a measure command and print the sample lines it produces.

Lines are read from the response topic. Output starts at the first line
whose tick index is count-1, so samples of a run already in progress are
skipped. Two clients measuring at the same time can still see each
other's lines.`,
	RunE:  measure,
}

func init() {
	measureCmd.Flags().Uint16VarP(&measureCount, "count", "n", 10, "number of measurements")
	measureCmd.Flags().Uint16VarP(&measureInterval, "interval", "i", 1000, "interval between measurements in milliseconds")
	measureCmd.Flags().DurationVar(&measureTimeout, "timeout", 0, "give up after this long (default: count*interval + 5s)")
	rootCmd.AddCommand(measureCmd)
}

func measure(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	req := command.Command{NumMeasurements: measureCount, IntervalMS: measureInterval}
	timeout := measureTimeout
	if timeout <= 0 {
		timeout = time.Duration(req.NumMeasurements)*req.Interval() + 5*time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	mqttCfg := cfg.MQTT
	// a fresh identity so the running sampler keeps its session
	mqttCfg.ClientID = ""
	mqttCfg.LWTTopic = ""
	client, err := mqtt.NewPahoClient(mqttCfg, nil)
	if err != nil {
		return fmt.Errorf("mqtt client: %w", err)
	}
	defer client.Disconnect()

	lines := make(chan string, 16)
	topic := client.Config().ResponseTopic
	if err := client.Subscribe(topic, client.Config().QoS[mqtt.QoSResponse], func(_ string, payload []byte) {
		select {
		case lines <- string(payload):
		default:
		}
	}); err != nil {
		return err
	}
	if err := client.SendCommand(ctx, req); err != nil {
		return err
	}

	return collectRun(ctx, lines, req.NumMeasurements, cmd.OutOrStdout())
}

// collectRun prints n lines starting at the first one carrying tick n-1.
func collectRun(ctx context.Context, lines <-chan string, n uint16, out io.Writer) error {
	first := strconv.Itoa(int(n) - 1)
	received := 0
	for received < int(n) {
		select {
		case line := <-lines:
			if received == 0 {
				if tick, _, _ := strings.Cut(line, ","); tick != first {
					continue
				}
			}
			fmt.Fprintln(out, line)
			received++
		case <-ctx.Done():
			return fmt.Errorf("received %d of %d samples: %w", received, n, ctx.Err())
		}
	}
	return nil
}
