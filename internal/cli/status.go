package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fenwick-automation/ladderd/internal/diag"
	"github.com/fenwick-automation/ladderd/internal/image"
	"github.com/fenwick-automation/ladderd/internal/shm"
)

var (
	statusOK    = color.New(color.FgGreen, color.Bold).SprintFunc()
	statusFault = color.New(color.FgRed, color.Bold).SprintFunc()
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the running instance's scan counter, error code, and host info",
	RunE: func(cmd *cobra.Command, args []string) error {
		seg, err := shm.Attach(shmPath())
		if err != nil {
			return fmt.Errorf("attach to %s: %w (is the supervisor running?)", shmPath(), err)
		}
		defer seg.Close()

		img := seg.Image
		errCode := image.ErrorCode(img.ErrorCode.Load())
		estop := img.EStop.Load()

		fmt.Printf("instance:      %s\n", instance)
		fmt.Printf("scan_count:    %d\n", img.ScanCount.Load())
		fmt.Printf("scan_time_us:  %.1f\n", img.ScanTime())
		fmt.Printf("heartbeat:     %d\n", img.Heartbeat.Load())
		if errCode == image.ErrNone {
			fmt.Printf("error_code:    %s\n", statusOK(errCode))
		} else {
			fmt.Printf("error_code:    %s\n", statusFault(errCode))
		}
		if estop {
			fmt.Printf("emergency_stop: %s\n", statusFault("true"))
		} else {
			fmt.Printf("emergency_stop: %s\n", statusOK("false"))
		}

		if host, err := diag.GetHostInfo(); err == nil {
			fmt.Printf("host:          %s (%s/%s)\n", host.Hostname, host.Platform, host.Architecture)
		}
		if mem, err := diag.GetMemoryInfo(); err == nil {
			fmt.Printf("memory:        %.1f%% used\n", mem.UsedPercent)
		}
		return nil
	},
}
