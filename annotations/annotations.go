// Package annotations parses interval-style track annotations (CVAT-like XML
// with <track label="..."><box frame="N" .../></track>) into a frame -> label
// lookup used to label keypoint rows.
package annotations

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/Noofbiz/strikes/strikes"
)

// ErrMalformed wraps every document-level parse failure.
var ErrMalformed = errors.New("malformed annotation document")

// Index maps a video-local frame id to a strike label id. Frames that no
// track mentions are absent; Label reports them as strikes.NoStrike.
type Index struct {
	labels map[int]int
}

// Empty returns an index with no annotated frames.
func Empty() *Index { return &Index{labels: map[int]int{}} }

// ParseFile opens path and parses it with Parse.
func ParseFile(path string, table *strikes.Table) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotations %s: %w", path, err)
	}
	defer f.Close()

	ix, err := Parse(f, table)
	if err != nil {
		return nil, fmt.Errorf("parse annotations %s: %w", path, err)
	}
	return ix, nil
}

// Parse walks every <track> element (at any depth) in document order. The
// track's label attribute is resolved through table, unknown or missing names
// falling back to No Strike. Each <box> nested under the track assigns that
// label to its frame attribute. A frame listed by several tracks keeps the
// label of the last one.
func Parse(r io.Reader, table *strikes.Table) (*Index, error) {
	if table == nil {
		return nil, errors.New("nil strike table")
	}
	dec := xml.NewDecoder(r)
	ix := &Index{labels: make(map[int]int)}

	sawRoot := false
	depth := 0
	// trackDepth is the depth of the enclosing <track>, 0 when outside one.
	trackDepth := 0
	trackLabel := strikes.NoStrike

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			sawRoot = true
			switch el.Name.Local {
			case "track":
				trackDepth = depth
				trackLabel = table.Lookup(attr(el, "label"))
			case "box":
				if trackDepth == 0 {
					continue
				}
				raw, ok := attrOK(el, "frame")
				if !ok {
					return nil, fmt.Errorf("%w: box without frame attribute (line %d)", ErrMalformed, line(dec))
				}
				frame, err := strconv.Atoi(strings.TrimSpace(raw))
				if err != nil {
					return nil, fmt.Errorf("%w: box frame %q is not an integer (line %d)", ErrMalformed, raw, line(dec))
				}
				ix.labels[frame] = trackLabel
			}
		case xml.EndElement:
			if depth == trackDepth {
				trackDepth = 0
				trackLabel = strikes.NoStrike
			}
			depth--
		}
	}
	if !sawRoot {
		return nil, fmt.Errorf("%w: document has no root element", ErrMalformed)
	}
	return ix, nil
}

func attr(el xml.StartElement, name string) string {
	v, _ := attrOK(el, name)
	return v
}

func attrOK(el xml.StartElement, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func line(dec *xml.Decoder) int {
	l, _ := dec.InputPos()
	return l
}

// Lookup returns the label assigned to frame and whether any track listed it.
func (ix *Index) Lookup(frame int) (int, bool) {
	id, ok := ix.labels[frame]
	return id, ok
}

// Label returns the label for frame, strikes.NoStrike for unannotated frames.
func (ix *Index) Label(frame int) int {
	if id, ok := ix.labels[frame]; ok {
		return id
	}
	return strikes.NoStrike
}

// Len is the number of annotated frames.
func (ix *Index) Len() int { return len(ix.labels) }

// Frames returns the annotated frame ids in ascending order.
func (ix *Index) Frames() []int {
	out := make([]int, 0, len(ix.labels))
	for f := range ix.labels {
		out = append(out, f)
	}
	sort.Ints(out)
	return out
}

// Span returns the smallest and largest annotated frame ids. ok is false for
// an empty index.
func (ix *Index) Span() (lo, hi int, ok bool) {
	for f := range ix.labels {
		if !ok {
			lo, hi, ok = f, f, true
			continue
		}
		if f < lo {
			lo = f
		}
		if f > hi {
			hi = f
		}
	}
	return lo, hi, ok
}

// Counts returns how many annotated frames carry each label id.
func (ix *Index) Counts(numClasses int) []int {
	counts := make([]int, numClasses)
	for _, id := range ix.labels {
		if id >= 0 && id < numClasses {
			counts[id]++
		}
	}
	return counts
}
