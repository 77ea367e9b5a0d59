package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ccollins476ad/halomedals/spartan"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const prompt = "What is your id, Spartan?: "

// Runner runs the medal pipeline for one player. *spartan.Runner implements
// it.
type Runner interface {
	Run(ctx context.Context, playerID string) (*spartan.Result, error)
}

// runPlayer calls r.Run() for one player. A failure is logged and does not
// affect other players.
func runPlayer(ctx context.Context, r Runner, playerID string) {
	log.Debugf("processing spartan: player=%s", playerID)

	_, err := r.Run(ctx, playerID)
	if errors.Is(err, spartan.ErrEmptyPlayerID) {
		return
	}
	if err != nil {
		log.WithError(err).Errorf("failed to process spartan: player=%s", playerID)
	}
}

// processPlayers calls runPlayer() for each player id in the given slice. It
// processes the players in parallel, cfg.Jobs goroutines.
func processPlayers(ctx context.Context, cfg *Config, r Runner, playerIDs []string) error {
	g := &errgroup.Group{}

	startGoroutines := func() {
		idChan := make(chan string)
		defer close(idChan)

		// Create a set of goroutines to process players in parallel.
		for i := 0; i < cfg.Jobs; i++ {
			g.Go(func() error {
				// Read ids from the channel and process them sequentially.
				// Proceed until the channel is closed.
				for id := range idChan {
					runPlayer(ctx, r, id)
				}
				return nil
			})
		}

		for _, id := range playerIDs {
			select {
			case <-ctx.Done():
				// Operation aborted. Return early to execute deferred channel
				// close.
				return

			case idChan <- id:
			}
		}
	}

	startGoroutines()

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// promptLoop repeatedly asks for a player id on out, reads it from in, and
// runs the pipeline for it. It returns when in is exhausted or ctx is done,
// even if a read from in is still blocked.
func promptLoop(ctx context.Context, r Runner, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	errc := make(chan error, 1)

	// Reads from in cannot be interrupted, so they happen on their own
	// goroutine. It is abandoned if ctx is done mid-read.
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			case lines <- scanner.Text():
			}
		}
		errc <- scanner.Err()
	}()

	for {
		fmt.Fprint(out, prompt)

		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return ctx.Err()

		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				if err := ctx.Err(); err != nil {
					return err
				}
				return <-errc
			}
			runPlayer(ctx, r, line)
		}
	}
}
