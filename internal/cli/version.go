package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set by the release build's -ldflags; it stays "dev" otherwise.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ladderd version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(Version)
		return nil
	},
}
