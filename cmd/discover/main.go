// Command discover runs one job discovery and prints the report as JSON.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// exitConfig is the exit status for a configuration fault
const exitConfig = 2

func main() {
	_ = godotenv.Load()

	cmd := newDiscoverCmd(os.Stdout)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ce *configFault
		if errors.As(err, &ce) {
			os.Exit(exitConfig)
		}
		os.Exit(1)
	}
}
