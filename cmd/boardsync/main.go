// Command boardsync joins a collaboration session and streams its events.
package main

import (
	"os"

	"github.com/boardwave/boardsync/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
