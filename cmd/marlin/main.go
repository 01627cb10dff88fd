package main

import (
	"os"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/adapters/driving/cli"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
