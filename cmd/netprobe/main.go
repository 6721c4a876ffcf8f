// Command netprobe scans hosts for open TCP ports and sweeps networks for
// live hosts.
package main

import "github.com/anstrom/netprobe/cmd/cli"

// Set by ldflags, e.g.
//
//	go build -ldflags "-X main.version=v1.2.0 -X main.commit=$(git rev-parse --short HEAD)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
