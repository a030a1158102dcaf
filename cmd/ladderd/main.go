// Command ladderd is the soft-real-time ladder-logic PLC runtime.
package main

import (
	"os"

	"github.com/fenwick-automation/ladderd/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
