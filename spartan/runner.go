// Package spartan runs the medal pipeline for one player: fetch the medals,
// resolve each medal image, and materialize one file per award.
package spartan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ccollins476ad/halomedals/fileutil"
	"github.com/ccollins476ad/halomedals/medal"
	"github.com/ccollins476ad/halomedals/stats"
	"github.com/ccollins476ad/halomedals/web"
	"github.com/flytam/filenamify"
	log "github.com/sirupsen/logrus"
)

var ErrEmptyPlayerID = errors.New("empty player id")

// ImageResolver returns the bytes of the image at a url.
// *download.ImageCache implements it.
type ImageResolver interface {
	Resolve(ctx context.Context, u string) ([]byte, error)
}

// Runner executes per-player runs. A single Runner may serve concurrent runs;
// they share the image resolver and the output directory.
type Runner struct {
	Fetcher  stats.Fetcher
	Images   ImageResolver
	Reporter Reporter

	// OutDir is the directory under which player folders are created.
	OutDir string

	// Gallery enables keeping an index.html page in the player folder that
	// shows every medal file there.
	Gallery bool
}

// Result describes a completed run.
type Result struct {
	PlayerID string
	Found    bool

	// Medals lists the player's medals by ascending award count. Nil if the
	// player was not found.
	Medals []medal.Descriptor

	// Awarded maps a medal's file stem to the number of files newly written
	// for it. Medals with nothing new are absent.
	Awarded map[string]int

	// Failed lists the names of medals whose image could not be resolved.
	Failed []string
}

// Folder returns the directory holding the given player's medal files.
func (r *Runner) Folder(playerID string) (string, error) {
	name, err := filenamify.Filenamify(playerID, filenamify.Options{})
	if err != nil {
		return "", fmt.Errorf("failed to derive folder name: player=%s: %w", playerID, err)
	}
	return filepath.Join(r.OutDir, name), nil
}

// Run fetches the player's medals and materializes one file per award.
//
// An unknown player, unusable upstream data, or a failed stats request yields
// a Result with Found=false and no filesystem changes. A medal whose image
// cannot be resolved is skipped; the remaining medals proceed. Run returns an
// error only if the player's folder cannot be written at all.
func (r *Runner) Run(ctx context.Context, playerID string) (*Result, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return nil, ErrEmptyPlayerID
	}

	res := &Result{PlayerID: playerID}

	fetched, err := r.Fetcher.FetchMedals(ctx, playerID)
	switch {
	case errors.Is(err, stats.ErrNotFound), errors.Is(err, stats.ErrUnexpectedShape):
		log.WithError(err).Warnf("spartan not found: player=%s", playerID)
		r.Reporter.NotFound(playerID)
		return res, nil

	case err != nil:
		log.WithError(err).Errorf("failed to fetch medals: player=%s", playerID)
		r.Reporter.NotFound(playerID)
		return res, nil

	case len(fetched) == 0:
		log.Warnf("spartan has no medals: player=%s", playerID)
		r.Reporter.NotFound(playerID)
		return res, nil
	}

	res.Found = true
	res.Medals = medal.SortByCount(fetched)
	res.Awarded = map[string]int{}
	r.Reporter.Earned(playerID, res.Medals)

	folder, err := r.Folder(playerID)
	if err != nil {
		return res, err
	}

	for _, d := range res.Medals {
		data, err := r.Images.Resolve(ctx, d.ImageURL)
		if err != nil {
			log.WithError(err).Warnf("failed to award medal: player=%s medal=%s", playerID, d.Name)
			res.Failed = append(res.Failed, d.Name)
			continue
		}

		n, err := medal.Materialize(folder, d, data)
		if err != nil {
			return res, fmt.Errorf("failed to materialize medal: player=%s medal=%s: %w", playerID, d.Name, err)
		}
		if n > 0 {
			res.Awarded[d.Stem()] += n
			r.Reporter.Awarded(playerID, d, n)
		}
	}

	// The gallery is refreshed even without new awards so that a missing or
	// stale page from an earlier run gets repaired.
	if r.Gallery && fileutil.IsDir(folder) {
		if _, err := web.WriteGallery(folder, playerID); err != nil {
			log.WithError(err).Warnf("failed to write gallery: player=%s", playerID)
		}
	}

	return res, nil
}
