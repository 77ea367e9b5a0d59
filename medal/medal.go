// Package medal describes medals earned by a player and materializes one
// image file per medal award.
package medal

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
)

// Descriptor is one medal type earned by a player: its name, how many times
// it was awarded, and where its image lives.
type Descriptor struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Count    int    `json:"count"`
	ImageURL string `json:"image_url"`
}

// SortByCount returns a copy of ds ordered by ascending award count. Medals
// with equal counts keep their relative order.
func SortByCount(ds []Descriptor) []Descriptor {
	sorted := make([]Descriptor, len(ds))
	copy(sorted, ds)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Count < sorted[j].Count
	})
	return sorted
}

// imageBase returns the final path segment of the descriptor's image url.
func (d Descriptor) imageBase() string {
	p := d.ImageURL
	if u, err := url.Parse(d.ImageURL); err == nil {
		p = u.Path
	}
	return path.Base(p)
}

// Ext returns the extension of the image url's final path segment, including
// the leading dot (e.g., ".png"). It is empty if the segment has none.
func (d Descriptor) Ext() string {
	return path.Ext(d.imageBase())
}

// Stem returns the image url's final path segment without its extension. It
// names the medal's files on disk.
func (d Descriptor) Stem() string {
	base := d.imageBase()
	return strings.TrimSuffix(base, path.Ext(base))
}

// FileName returns the name of the file recording the n'th award of this
// medal, counting from 1.
func (d Descriptor) FileName(n int) string {
	return fmt.Sprintf("%s_%d%s", d.Stem(), n, d.Ext())
}

// Plural returns "medals" for counts above one and "medal" otherwise, so a
// zero count reads "0 ... medal".
func Plural(n int) string {
	if n > 1 {
		return "medals"
	}
	return "medal"
}
