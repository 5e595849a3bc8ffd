package main

import (
	"os"

	"github.com/genvid/genvid/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
