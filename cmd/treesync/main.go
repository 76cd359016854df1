// Command treesync copies and synchronizes directory trees between local
// disk and S3-compatible object storage.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitFailure   = 1
	exitCancelled = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	a := newApp(os.Stderr)
	err := newRootCmd(a).ExecuteContext(ctx)
	stop()

	code := exitCode(err)
	switch code {
	case exitCancelled:
		a.logger.Warn("cancelled", "error", err)
	case exitFailure:
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(code)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.IsCancelled(err), errors.Is(err, context.Canceled):
		return exitCancelled
	default:
		return exitFailure
	}
}
