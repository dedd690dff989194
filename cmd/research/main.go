package main

import (
	"os"

	"github.com/Epistemic-Technology/research-library/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
