package main

import (
	"os"

	"github.com/docagent/docagent-go/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
