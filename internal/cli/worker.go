package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fenwick-automation/ladderd/internal/worker"
)

// workerCmd is the hidden re-exec target the supervisor spawns in place of
// fork() (spec §4.7; see DESIGN.md for why self-re-exec is the idiomatic
// Go substitute). It is not meant to be invoked directly by a user.
var workerCmd = &cobra.Command{
	Use:    "__worker",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		gpioCfg, err := parseGPIOConfig()
		if err != nil {
			return err
		}

		logger := log.New(os.Stderr, "[worker] ", log.LstdFlags)

		w, err := worker.New(worker.Config{
			ShmPath:          shmPath(),
			GPIO:             gpioCfg,
			ConfigPath:       configPath,
			SystemConfigPath: systemConfigPath,
			UserConfigPath:   userConfigPath,
			ModbusAddr:       modbusAddr,
			WatchdogPeriod:   time.Duration(watchdogSecs) * time.Second,
			Log:              logger,
		})
		if err != nil {
			logger.Printf("init failed: %v", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return w.Run(ctx)
	},
}

func init() {
	addGPIOFlags(workerCmd)
}
