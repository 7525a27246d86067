package lifecycle

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultMarkerHost is the image host whose cards end the conversation.
const DefaultMarkerHost = "limitlesstcg.nyc3.cdn.digitaloceanspaces.com"

// Marker identifies completion content by a substring of the image address.
type Marker struct {
	Substring string
}

// Matches reports whether src carries the marker. An empty marker never matches.
func (m Marker) Matches(src string) bool {
	return m.Substring != "" && src != "" && strings.Contains(src, m.Substring)
}

type detectorState int

const (
	detectorIdle detectorState = iota
	detectorArmed
	detectorDisarmed
)

// Detector turns the mutation stream of the chat surface into a single
// completion signal. It is owned by one event loop and is not safe for
// concurrent use.
type Detector struct {
	marker     Marker
	onComplete func(src string)
	state      detectorState
	source     MutationSource
	stop       func()
	batches    int
}

// NewDetector returns an unarmed detector. onComplete receives the address of
// the first matching image.
func NewDetector(marker Marker, onComplete func(src string)) *Detector {
	return &Detector{marker: marker, onComplete: onComplete}
}

// Arm subscribes to source. A detector can be armed once.
func (d *Detector) Arm(source MutationSource) error {
	switch d.state {
	case detectorArmed:
		return nil
	case detectorDisarmed:
		return ErrDetectorSpent
	}
	d.source = source
	d.state = detectorArmed
	d.stop = source.Observe(d.scan)
	return nil
}

// Armed reports whether the detector is still observing.
func (d *Detector) Armed() bool {
	return d.state == detectorArmed
}

// Batches returns how many mutation batches were scanned.
func (d *Detector) Batches() int {
	return d.batches
}

// Disarm unsubscribes without signaling. Safe to call repeatedly.
func (d *Detector) Disarm() {
	if d.state == detectorDisarmed {
		return
	}
	d.state = detectorDisarmed
	if d.stop != nil {
		d.stop()
		d.stop = nil
	}
	d.source = nil
}

// scan re-checks every image under the surface, not only the added ones,
// since new content may land anywhere in the subtree.
func (d *Detector) scan() {
	if d.state != detectorArmed {
		return
	}
	d.batches++
	for _, src := range d.source.Images() {
		if !d.marker.Matches(src) {
			continue
		}
		d.Disarm()
		if d.onComplete != nil {
			d.onComplete(src)
		}
		return
	}
}

// ImagesInHTML returns the src of every img element in fragment, in document
// order. Malformed markup is parsed leniently.
func ImagesInHTML(fragment string) []string {
	if strings.TrimSpace(fragment) == "" {
		return nil
	}
	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil
	}

	var srcs []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Img {
			for _, a := range n.Attr {
				if a.Namespace == "" && a.Key == "src" && a.Val != "" {
					srcs = append(srcs, a.Val)
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return srcs
}
