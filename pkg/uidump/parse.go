// Package uidump parses `uiautomator dump` output and serialises UI tree
// snapshots for diagnostics.
package uidump

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/devicelab-dev/autopilot/pkg/core"
)

// Node is one element recovered from a flat dump scan.
type Node struct {
	Index       int
	Text        string
	ResourceID  string
	ContentDesc string
	ClassName   string
	Package     string
	Clickable   bool
	Enabled     bool
	Bounds      core.Bounds
}

// Center returns the centre of the node's bounds.
func (n Node) Center() (int, int) {
	return n.Bounds.Center()
}

var (
	nodeTagRe = regexp.MustCompile(`<node\b([^>]*?)/?>`)
	attrRe    = regexp.MustCompile(`([\w:-]+)="([^"]*)"`)
	boundsRe  = regexp.MustCompile(`^\[(-?\d+),(-?\d+)\]\[(-?\d+),(-?\d+)\]$`)
)

// Parse scans a dump for <node> tags. Nodes without a parseable bounds
// attribute are skipped; other missing attributes default to empty.
func Parse(dump string) []Node {
	var nodes []Node
	for i, m := range nodeTagRe.FindAllStringSubmatch(dump, -1) {
		attrs := parseAttrs(m[1])
		bounds, ok := ParseBounds(attrs["bounds"])
		if !ok {
			continue
		}
		nodes = append(nodes, Node{
			Index:       i,
			Text:        attrs["text"],
			ResourceID:  attrs["resource-id"],
			ContentDesc: attrs["content-desc"],
			ClassName:   attrs["class"],
			Package:     attrs["package"],
			Clickable:   attrs["clickable"] == "true",
			Enabled:     attrs["enabled"] != "false",
			Bounds:      bounds,
		})
	}
	return nodes
}

func parseAttrs(s string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(s, -1) {
		attrs[m[1]] = Unescape(m[2])
	}
	return attrs
}

// ParseBounds parses Android bounds string "[x1,y1][x2,y2]".
func ParseBounds(s string) (core.Bounds, bool) {
	m := boundsRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return core.Bounds{}, false
	}
	var v [4]int
	for i := range v {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return core.Bounds{}, false
		}
		v[i] = n
	}
	return core.BoundsFromCorners(v[0], v[1], v[2], v[3]), true
}

// FindByID returns the first node whose resource-id equals id.
func FindByID(nodes []Node, id string) (Node, bool) {
	if id == "" {
		return Node{}, false
	}
	for _, n := range nodes {
		if n.ResourceID == id {
			return n, true
		}
	}
	return Node{}, false
}

// FindByText returns the first node whose text or content-desc equals text.
func FindByText(nodes []Node, text string) (Node, bool) {
	if text == "" {
		return Node{}, false
	}
	for _, n := range nodes {
		if n.Text == text || n.ContentDesc == text {
			return n, true
		}
	}
	return Node{}, false
}

// Packages returns the distinct package attributes present in the dump, in
// order of first appearance.
func Packages(nodes []Node) []string {
	seen := make(map[string]bool)
	var pkgs []string
	for _, n := range nodes {
		if n.Package == "" || seen[n.Package] {
			continue
		}
		seen[n.Package] = true
		pkgs = append(pkgs, n.Package)
	}
	return pkgs
}
