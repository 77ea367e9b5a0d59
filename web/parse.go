package web

import (
	"bytes"
	"os"

	"golang.org/x/net/html"
)

// ForEachNode applies a function to the given node and each of its
// descendants. It stops at the first error fn returns.
func ForEachNode(node *html.Node, fn func(n *html.Node) error) error {
	var iter func(n *html.Node) error
	iter = func(n *html.Node) error {
		if err := fn(n); err != nil {
			return err
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if err := iter(c); err != nil {
				return err
			}
		}

		return nil
	}

	return iter(node)
}

// NodesWithDataVal returns a slice of all descendant element nodes whose
// "data" field has the given value.
func NodesWithDataVal(node *html.Node, dataName string) []*html.Node {
	var nodes []*html.Node

	ForEachNode(node, func(n *html.Node) error {
		if n.Type == html.ElementNode && n.Data == dataName {
			nodes = append(nodes, n)
		}
		return nil
	})

	return nodes
}

// EmbeddedImageURLs returns the src of every img element in the given html
// document, in document order.
func EmbeddedImageURLs(doc *html.Node) []string {
	var urls []string
	for _, n := range NodesWithDataVal(doc, "img") {
		for _, a := range n.Attr {
			if a.Key == "src" {
				urls = append(urls, a.Val)
				break
			}
		}
	}

	return urls
}

// ReadGalleryImages parses the gallery page at path and returns the image
// filenames it displays.
func ReadGalleryImages(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}

	return EmbeddedImageURLs(doc), nil
}
