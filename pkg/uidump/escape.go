package uidump

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	escaper  = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")
	entityRe = regexp.MustCompile(`&(#\d+|lt|gt|amp|quot|apos);`)
)

// Escape replaces the five XML special characters with entities.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Unescape reverses Escape and also expands decimal character references.
// Entities are expanded in one pass, so "&amp;lt;" yields "&lt;".
func Unescape(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return entityRe.ReplaceAllStringFunc(s, func(ref string) string {
		switch name := ref[1 : len(ref)-1]; name {
		case "lt":
			return "<"
		case "gt":
			return ">"
		case "amp":
			return "&"
		case "quot":
			return `"`
		case "apos":
			return "'"
		default:
			code, err := strconv.Atoi(name[1:])
			if err != nil {
				return ref
			}
			return string(rune(code))
		}
	})
}
