// Command ashalert checks the VAAC advisory index, refreshes the status page, and
// emails the newest volcanic ash advisory once.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ashalert: %v\n", err)
		os.Exit(1)
	}
}
