package main

import (
	"os"

	"github.com/rodrick-mpofu/teachback-ai/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
