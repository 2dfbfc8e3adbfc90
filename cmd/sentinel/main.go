// Command sentinel drives the Sentinel Cycle Engine: a one-shot
// interactive run of a single cycle (run), an HTTP+WS server exposing the
// engine's operations to other processes (serve), and a config inspector
// (config).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
