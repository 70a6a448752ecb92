package main

import (
	"os"

	"github.com/soundprediction/graphrank/cmd/graphrank"
)

func main() {
	if err := graphrank.Execute(); err != nil {
		os.Exit(1)
	}
}
