// Command storefront is a terminal client for a Kirana store: browse the
// catalog, keep a cart that survives restarts and place orders.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fjod/go_cart/storefront/internal/app"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/fjod/go_cart/storefront/internal/telemetry"
)

func main() {
	os.Exit(mainExit())
}

func mainExit() int {
	log.SetPrefix("[STOREFRONT] ")
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)

	var verbose bool
	flag.BoolVar(&verbose, "v", false, "log background activity to stderr")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: storefront [-v] <command> [args]\n\nCommands:\n")
		printCommands(flag.CommandLine.Output())
		fmt.Fprintf(flag.CommandLine.Output(), "\nSettings are read from STOREFRONT_* environment variables.\n")
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}
	if !verbose {
		log.SetOutput(io.Discard)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, "storefront")
	if err != nil {
		log.Printf("tracing setup error: %v \n", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown error: %v \n", err)
		}
	}()

	recorder := notify.NewRecorder(nil)
	a, err := app.New(ctx, cfg, recorder)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	code := 0
	if err := run(ctx, a, os.Stdout, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", errorText(err))
		code = 1
	}

	// let background sync finish before exiting
	a.Tasks.Wait()
	for _, ev := range recorder.Drain() {
		fmt.Fprintf(os.Stderr, "Warning: %s: %s\n", ev.Message, errorText(ev.Err))
	}
	if err := a.Close(); err != nil {
		log.Printf("close error: %v \n", err)
	}
	return code
}
