package spartan

import (
	"fmt"
	"io"
	"sync"

	"github.com/ccollins476ad/halomedals/medal"
	log "github.com/sirupsen/logrus"
)

// Reporter presents the outcome of a run.
type Reporter interface {
	// NotFound reports that no medals could be retrieved for the player.
	NotFound(playerID string)

	// Earned reports every medal the player has earned, in display order.
	Earned(playerID string, medals []medal.Descriptor)

	// Awarded reports that n new files were materialized for a medal.
	Awarded(playerID string, d medal.Descriptor, n int)
}

// TextReporter writes human-readable summaries to a writer. It is safe for
// concurrent use; lines from concurrent runs do not interleave mid-line.
type TextReporter struct {
	mtx sync.Mutex
	w   io.Writer
}

func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: w}
}

func (r *TextReporter) NotFound(playerID string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	fmt.Fprintf(r.w, "Spartan %s not found!\n", playerID)
}

func (r *TextReporter) Earned(playerID string, medals []medal.Descriptor) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	for _, d := range medals {
		fmt.Fprintf(r.w, "Earned %d %s %s\n", d.Count, d.Name, medal.Plural(d.Count))
	}
	fmt.Fprintln(r.w)
}

func (r *TextReporter) Awarded(playerID string, d medal.Descriptor, n int) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	fmt.Fprintf(r.w, "Awarding %d new %s %s\n", n, d.Stem(), medal.Plural(n))
}

// LogReporter reports through the logger. It suits non-interactive hosts such
// as the http server.
type LogReporter struct{}

func (LogReporter) NotFound(playerID string) {
	log.Infof("spartan not found: player=%s", playerID)
}

func (LogReporter) Earned(playerID string, medals []medal.Descriptor) {
	log.Infof("fetched medals: player=%s medal_types=%d", playerID, len(medals))
}

func (LogReporter) Awarded(playerID string, d medal.Descriptor, n int) {
	log.Infof("awarded medals: player=%s medal=%s new=%d total=%d", playerID, d.Stem(), n, d.Count)
}
