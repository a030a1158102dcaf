package cli

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/fenwick-automation/ladderd/internal/supervisor"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the supervisor, which owns the shared process image and the worker process",
	RunE: func(cmd *cobra.Command, args []string) error {
		printBanner()
		gpioCfg, err := parseGPIOConfig()
		if err != nil {
			return err
		}

		logger := log.New(os.Stderr, "[supervisor] ", log.LstdFlags)

		sup := supervisor.New(supervisor.Config{
			ShmPath:    shmPath(),
			GPIO:       gpioCfg,
			WorkerArgs: forwardedWorkerArgs(),
		}, logger)

		return sup.Run(context.Background())
	},
}

func init() {
	addGPIOFlags(runCmd)
}
