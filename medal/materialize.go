package medal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ccollins476ad/halomedals/fileutil"
	log "github.com/sirupsen/logrus"
)

var ErrNegativeCount = errors.New("negative award count")

// Materialize ensures folder contains one file per award of the given medal,
// named d.FileName(1) through d.FileName(d.Count), each holding data. Files
// that already exist are left untouched; only missing ones are written. It
// returns the number of files written by this call.
//
// A nil data slice means the medal image could not be obtained. The medal is
// skipped with a warning and 0 is returned.
//
// Materialize is safe to run concurrently against the same folder: each file
// is created exclusively, so two callers never both write the same award.
func Materialize(folder string, d Descriptor, data []byte) (int, error) {
	if d.Count < 0 {
		return 0, fmt.Errorf("%w: medal=%s count=%d", ErrNegativeCount, d.Name, d.Count)
	}
	if data == nil {
		log.Warnf("failed to award medal: no image data: medal=%s", d.Name)
		return 0, nil
	}

	if err := os.MkdirAll(folder, 0755); err != nil {
		return 0, fmt.Errorf("failed to create medal folder: %w", err)
	}

	created := 0
	for n := 1; n <= d.Count; n++ {
		p := filepath.Join(folder, d.FileName(n))
		ok, err := fileutil.WriteExclusive(p, data)
		if err != nil {
			return created, err
		}
		if ok {
			log.Debugf("awarded medal: path=%s", p)
			created++
		}
	}

	return created, nil
}
