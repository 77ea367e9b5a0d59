package web

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/net/html"
)

const parsePage = `<html><body>
<div><img src="a.png"><img alt="no src"></div>
<p><img src="b.png" alt="b"></p>
</body></html>`

func TestEmbeddedImageURLs(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(parsePage))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := EmbeddedImageURLs(doc), []string{"a.png", "b.png"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("urls = %v, want %v", got, want)
	}
	if got := len(NodesWithDataVal(doc, "img")); got != 3 {
		t.Fatalf("img nodes = %d, want 3", got)
	}
}

func TestForEachNodeStopsOnError(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(parsePage))
	if err != nil {
		t.Fatal(err)
	}

	errStop := errors.New("stop")
	seen := 0
	err = ForEachNode(doc, func(n *html.Node) error {
		if n.Type == html.ElementNode && n.Data == "img" {
			seen++
			return errStop
		}
		return nil
	})
	if !errors.Is(err, errStop) {
		t.Fatalf("err = %v, want errStop", err)
	}
	if seen != 1 {
		t.Fatalf("visited %d imgs after stop, want 1", seen)
	}
}
