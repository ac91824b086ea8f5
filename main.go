// orgstats aggregates GitHub organization activity into ranked per-author statistics.
//
// Usage:
//
//	orgstats stats commits --org my-org
//	orgstats org repos --org my-org --cache sqlite -o table
package main

import (
	"github.com/naka-gawa/orgstats/cmd"
)

// Version can be overridden at build time using:
//
//	go build -ldflags="-X main.Version=v1.0.0"
var Version = "dev"

func main() {
	cmd.Version = Version
	cmd.Execute()
}
