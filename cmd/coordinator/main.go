// Command coordinator advances the book pipeline by one step per run.
package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/cmd/coordinator/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
