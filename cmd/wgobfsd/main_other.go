//go:build !linux

// Command wgobfsd is Linux-only: it binds NFQUEUE, a Linux kernel facility.
// This stub lets `go build ./...` succeed on other platforms without
// pulling in the real CLI, which depends on wgobfs.LinuxQueueOpener.
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "wgobfsd: NFQUEUE is Linux-only; this binary does nothing on this platform")
	os.Exit(1)
}
