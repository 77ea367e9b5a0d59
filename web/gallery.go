package web

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/ccollins476ad/halomedals/fileutil"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

// GalleryFilename is the name of the gallery page within a player folder.
const GalleryFilename = "index.html"

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".svg":  true,
}

// BuildGallery constructs an html web page titled after the given player and
// displaying images with the given filenames.
func BuildGallery(title string, filenames []string) string {
	sb := strings.Builder{}

	sb.WriteString(`<!DOCTYPE html>
<html>
<head>
`)
	fmt.Fprintf(&sb, "<title>%s</title>\n", html.EscapeString(title))
	sb.WriteString(`</head>
<body>
`)

	for _, f := range filenames {
		esc := html.EscapeString(f)
		fmt.Fprintf(&sb, "<img src=\"%s\" alt=\"%s\" style=\"background-size:100%% 100%%\">\n", esc, esc)
	}

	sb.WriteString(`</body>
</html>
`)

	return sb.String()
}

// GalleryImages returns the names of the image files in folder, sorted.
// Hidden files and the gallery page itself are excluded.
func GalleryImages(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !imageExts[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// WriteGallery (re)writes the gallery page of a player folder so that it
// shows every medal image in the folder. A page that already shows exactly
// those images is left alone. It returns the path of the page.
func WriteGallery(folder string, title string) (string, error) {
	names, err := GalleryImages(folder)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(folder, GalleryFilename)
	if shown, err := ReadGalleryImages(dest); err == nil && slices.Equal(shown, names) {
		log.Debugf("gallery up to date: path=%s images=%d", dest, len(names))
		return dest, nil
	}

	if err := fileutil.WriteAtomic(dest, []byte(BuildGallery(title, names))); err != nil {
		return "", err
	}
	return dest, nil
}
