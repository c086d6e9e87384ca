package main

import (
	"os"

	"github.com/ironsheep/invoice-ocr/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
