package uidump

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/devicelab-dev/autopilot/pkg/core"
)

// Element is a node of a parsed UI tree snapshot.
type Element struct {
	ClassName   string
	Text        string
	ContentDesc string
	ResourceID  string
	Clickable   bool
	Enabled     bool
	Focused     bool
	Scrollable  bool
	Bounds      core.Bounds
	Children    []*Element
}

// ParseTree builds the element forest under <hierarchy>. Element tags are
// either <node class="..."> from a shell dump or the widget class itself
// from the UIAutomator2 source endpoint; the class attribute wins when both
// are present. A document cut off mid-tree keeps the elements read so far.
func ParseTree(xmlData string) ([]*Element, error) {
	dec := xml.NewDecoder(strings.NewReader(xmlData))

	var (
		roots   []*Element
		open    []*Element
		inTree  bool
		readErr error
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "hierarchy" {
				inTree = true
				continue
			}
			el := elementFrom(t)
			if n := len(open); n > 0 {
				open[n-1].Children = append(open[n-1].Children, el)
			} else {
				roots = append(roots, el)
			}
			open = append(open, el)
		case xml.EndElement:
			if t.Name.Local != "hierarchy" && len(open) > 0 {
				open = open[:len(open)-1]
			}
		}
	}

	if readErr != nil && len(roots) == 0 {
		return nil, readErr
	}
	if !inTree {
		return nil, errors.New("invalid UI tree: no hierarchy element found")
	}
	return roots, nil
}

func elementFrom(t xml.StartElement) *Element {
	el := &Element{ClassName: t.Name.Local, Enabled: true}
	for _, a := range t.Attr {
		v := a.Value
		switch a.Name.Local {
		case "class":
			el.ClassName = v
		case "text":
			el.Text = v
		case "content-desc":
			el.ContentDesc = v
		case "resource-id":
			el.ResourceID = v
		case "bounds":
			el.Bounds, _ = ParseBounds(v)
		case "clickable":
			el.Clickable = v == "true"
		case "enabled":
			el.Enabled = v != "false"
		case "focused":
			el.Focused = v == "true"
		case "scrollable":
			el.Scrollable = v == "true"
		}
	}
	return el
}

// Write serialises roots as indented XML-like text. Every attribute value is
// escaped with Escape.
func Write(w io.Writer, roots []*Element) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>\n")
	bw.WriteString("<hierarchy>\n")
	for _, r := range roots {
		writeElement(bw, r, 1)
	}
	bw.WriteString("</hierarchy>\n")
	return bw.Flush()
}

func writeElement(w *bufio.Writer, e *Element, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, `%s<node class="%s" text="%s" content-desc="%s" resource-id="%s" clickable="%t" enabled="%t" focused="%t" scrollable="%t" bounds="%s"`,
		indent,
		Escape(e.ClassName),
		Escape(e.Text),
		Escape(e.ContentDesc),
		Escape(e.ResourceID),
		e.Clickable, e.Enabled, e.Focused, e.Scrollable,
		e.Bounds.String(),
	)
	if len(e.Children) == 0 {
		w.WriteString(" />\n")
		return
	}
	w.WriteString(">\n")
	for _, c := range e.Children {
		writeElement(w, c, depth+1)
	}
	fmt.Fprintf(w, "%s</node>\n", indent)
}

// Count returns the number of elements in the trees rooted at roots.
func Count(roots []*Element) int {
	n := 0
	for _, r := range roots {
		n += 1 + Count(r.Children)
	}
	return n
}
