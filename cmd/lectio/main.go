// Package main is the entry point for the lectio sync engine.
package main

import (
	"os"

	"github.com/livinlefevreloca/lectio/cmd/lectio/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
