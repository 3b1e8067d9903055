package main

import (
	"os"

	"quiz-kiosk-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
