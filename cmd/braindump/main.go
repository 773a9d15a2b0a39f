package main

import (
	"os"

	"github.com/braindump-sh/braindump/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
