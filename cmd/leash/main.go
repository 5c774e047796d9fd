package main

import (
	"github.com/leash-sh/leash/internal/cli"
	"github.com/leash-sh/leash/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
