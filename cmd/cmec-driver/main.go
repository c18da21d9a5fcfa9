// cmd/cmec-driver/main.go
//
// This is the entry point for cmec-driver.
//
// Every subcommand loads the driver configuration, opens the logger and hands
// off to internal/driver. Errors that stop a command are printed to stderr and
// exit with status 1; failed module scripts only show up in the run summary.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{}
	err := a.rootCmd().ExecuteContext(ctx)
	stop()
	if cerr := a.close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		die("Error: %v", err)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
