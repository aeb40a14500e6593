package main

import (
	"os"

	"github.com/rewired-gh/otawatch/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
