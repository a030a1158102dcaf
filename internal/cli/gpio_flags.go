package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fenwick-automation/ladderd/internal/gpio"
	"github.com/fenwick-automation/ladderd/internal/image"
)

var (
	gpioChip      string
	gpioInputs    string
	gpioOutputs   string
	gpioEnable    int
	gpioIndicator int
	modbusAddr    string
	watchdogSecs  int
)

func addGPIOFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&gpioChip, "gpio-chip", "/dev/gpiochip0", "GPIO chardev path")
	cmd.Flags().StringVar(&gpioInputs, "gpio-inputs", "0,1,2", "Comma-separated input line offsets")
	cmd.Flags().StringVar(&gpioOutputs, "gpio-outputs", "3,4,5,6,7,8", "Comma-separated output line offsets")
	cmd.Flags().IntVar(&gpioEnable, "gpio-enable", 9, "Enable line offset (active-low)")
	cmd.Flags().IntVar(&gpioIndicator, "gpio-indicator", 10, "Indicator line offset, -1 to disable")
	cmd.Flags().StringVar(&modbusAddr, "modbus-addr", fmt.Sprintf(":%d", 502), "Modbus/TCP listen address")
	cmd.Flags().IntVar(&watchdogSecs, "watchdog-timeout", 5, "Scan-loop watchdog timeout in seconds (floor 5)")
}

func parseGPIOConfig() (gpio.Config, error) {
	inputs, err := parseOffsets(gpioInputs, image.NumInputs)
	if err != nil {
		return gpio.Config{}, fmt.Errorf("--gpio-inputs: %w", err)
	}
	outputs, err := parseOffsets(gpioOutputs, image.NumOutputs)
	if err != nil {
		return gpio.Config{}, fmt.Errorf("--gpio-outputs: %w", err)
	}

	cfg := gpio.Config{
		Chip:          gpioChip,
		EnableLine:    gpioEnable,
		IndicatorLine: gpioIndicator,
	}
	copy(cfg.InputLines[:], inputs)
	copy(cfg.OutputLines[:], outputs)
	return cfg, nil
}

func parseOffsets(s string, want int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != want {
		return nil, fmt.Errorf("expected %d offsets, got %d", want, len(parts))
	}
	out := make([]int, want)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("offset %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}

// forwardedWorkerArgs reconstructs the flag set the worker subprocess
// needs, so the supervisor's re-exec carries the same GPIO/config/modbus
// wiring the run command was invoked with.
func forwardedWorkerArgs() []string {
	return []string{
		"--instance", instance,
		"--shm-name", shmName,
		"--config", configPath,
		"--system-config", systemConfigPath,
		"--user-config", userConfigPath,
		"--gpio-chip", gpioChip,
		"--gpio-inputs", gpioInputs,
		"--gpio-outputs", gpioOutputs,
		"--gpio-enable", strconv.Itoa(gpioEnable),
		"--gpio-indicator", strconv.Itoa(gpioIndicator),
		"--modbus-addr", modbusAddr,
		"--watchdog-timeout", strconv.Itoa(watchdogSecs),
	}
}
