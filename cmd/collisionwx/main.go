package main

import (
	"os"

	"github.com/couchcryptid/collision-weather-etl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
