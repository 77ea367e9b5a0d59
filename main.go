package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ccollins476ad/halomedals/download"
	"github.com/ccollins476ad/halomedals/server"
	"github.com/ccollins476ad/halomedals/spartan"
	"github.com/ccollins476ad/halomedals/stats"
	log "github.com/sirupsen/logrus"
)

func printFatalError(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

func main() {
	cfg, err := parseArgs(os.Args[0], os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		printFatalError(err)
		os.Exit(1)
	}

	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	fetcher, err := stats.NewClient(cfg.StatsOptions())
	if err != nil {
		printFatalError(err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// Restore default signal handling so a second interrupt kills the
		// process even if shutdown stalls.
		<-ctx.Done()
		stop()
	}()

	// One image cache for the life of the process; concurrent runs share it.
	cache := download.NewImageCache(download.CacheOptions{
		Dir:     cfg.CacheDir,
		Timeout: cfg.Timeout,
	})

	r := &spartan.Runner{
		Fetcher: fetcher,
		Images:  cache,
		OutDir:  cfg.OutDir,
		Gallery: cfg.Gallery,
	}

	switch {
	case cfg.Serve != "":
		r.Reporter = spartan.LogReporter{}
		err = server.ListenAndServe(ctx, cfg.Serve, server.NewRouter(r, cfg.CORSOrigins))

	case len(cfg.PlayerIDs) > 0:
		r.Reporter = spartan.NewTextReporter(os.Stdout)
		err = processPlayers(ctx, cfg, r, cfg.PlayerIDs)

	default:
		r.Reporter = spartan.NewTextReporter(os.Stdout)
		err = promptLoop(ctx, r, os.Stdin, os.Stdout)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		printFatalError(err)
		os.Exit(2)
	}
}
