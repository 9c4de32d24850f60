package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kilianp07/sampler/core/sensor"
)

var convertInvert bool

var convertCmd = &cobra.Command{
	Use:   "convert <value>...",
	Short: "Apply the configured calibration to raw readings",
	Args:  cobra.MinimumNArgs(1),
	RunE:  convert,
}

func init() {
	convertCmd.Flags().BoolVar(&convertInvert, "invert", false, "treat arguments as temperatures and print raw readings")
	rootCmd.AddCommand(convertCmd)
}

func convert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	calib := cfg.Sensor.Calibration
	maxRaw := sensor.RawSample(cfg.Sensor.MaxRaw)
	out := cmd.OutOrStdout()
	for _, arg := range args {
		if convertInvert {
			v, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return fmt.Errorf("invalid temperature %q: %w", arg, err)
			}
			fmt.Fprintf(out, "%s\t%d\n", arg, calib.Invert(v, maxRaw))
			continue
		}
		raw, err := strconv.ParseUint(arg, 10, 16)
		if err != nil {
			return fmt.Errorf("invalid raw reading %q: %w", arg, err)
		}
		v := calib.Convert(sensor.RawSample(raw))
		fmt.Fprintf(out, "%d\t%s\n", raw, strconv.FormatFloat(float64(float32(v)), 'f', -1, 32))
	}
	return nil
}
