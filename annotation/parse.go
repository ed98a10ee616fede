// Package annotation finds collaborator references in documentation.
//
// A reference is written
//
//	@dotted.path                a package (module)
//	@dotted.path.Symbol         a function or type, when no package matches
//	@dotted.path.Recv.Method    a method, when neither of the above matches
//	@dotted.path::Symbol        a symbol selected explicitly from a package
//	@dotted.path::Recv.Method   a method selected explicitly
//
// where segments may also be separated by slashes, so full import paths
// such as @example.com/shop/tax are accepted. The grammar is parsed on its
// own, independent of any other doc comment conventions.
package annotation

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Marker starts an annotation
const Marker = '@'

// memberSep selects a symbol inside a package path
const memberSep = "::"

// Token is one well-formed annotation
type Token struct {
	Raw    string `json:"raw" yaml:"raw"`       // text after the marker
	Path   string `json:"path" yaml:"path"`     // dotted or slashed package path
	Member string `json:"member,omitempty" yaml:"member,omitempty"`
	Range  Range  `json:"range" yaml:"range"`
}

// Parse scans doc for annotations in order of appearance. A marker only
// counts at the start of the text, after whitespace, or after opening
// punctuation, so e-mail addresses and decorators inside words are ignored.
func Parse(doc string) ([]Token, []Diagnostic) {
	var (
		tokens []Token
		diags  []Diagnostic
	)
	tracker := newPositionTracker(doc)

	for i := 0; i < len(doc); i++ {
		if doc[i] != Marker || !markerBoundary(doc, i) {
			continue
		}
		j := i + 1
		for j < len(doc) && pathByte(doc[j]) {
			j++
		}
		raw := trimTrailing(doc[i+1 : j])
		if raw == "" {
			continue
		}

		start := tracker.advanceTo(i)
		end := tracker.advanceTo(i + 1 + len(raw))
		rng := Range{Start: start, End: end}

		tok, diag := parseRaw(raw)
		if diag != nil {
			diag.Range = rng
			diags = append(diags, *diag)
		} else {
			tok.Range = rng
			tokens = append(tokens, tok)
		}
		i = j - 1
	}
	return tokens, diags
}

func markerBoundary(doc string, i int) bool {
	if i == 0 {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(doc[:i])
	return unicode.IsSpace(prev) || strings.ContainsRune("([{,;:\"'`", prev)
}

func pathByte(c byte) bool {
	return c == '_' || c == '.' || c == '/' || c == ':' || c == '-' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// trimTrailing drops sentence punctuation glued to the end of an annotation
func trimTrailing(raw string) string {
	for {
		switch {
		case strings.HasSuffix(raw, memberSep):
			return raw
		case strings.HasSuffix(raw, ":"), strings.HasSuffix(raw, "."),
			strings.HasSuffix(raw, ","), strings.HasSuffix(raw, ";"):
			raw = raw[:len(raw)-1]
		default:
			return raw
		}
	}
}

func parseRaw(raw string) (Token, *Diagnostic) {
	bad := func(msg string, suggestions ...string) (Token, *Diagnostic) {
		return Token{}, &Diagnostic{Raw: raw, Message: msg, Severity: SeverityError, Suggestions: suggestions}
	}

	parts := strings.Split(raw, memberSep)
	if len(parts) > 2 {
		return bad("more than one '::' member selector")
	}
	path := parts[0]
	var member string
	if len(parts) == 2 {
		member = parts[1]
		if member == "" {
			return bad("missing member after '::'", "@"+path)
		}
		if !validMember(member) {
			return bad("member '" + member + "' is not an identifier or Recv.Method")
		}
	}

	if strings.Contains(path, ":") {
		return bad("single ':' in path", "use '::' to select a member: @"+strings.Replace(raw, ":", "::", 1))
	}
	if path == "" {
		return bad("empty path")
	}
	for _, seg := range splitSegments(path) {
		if seg == "" {
			return bad("empty path segment")
		}
		if !validSegment(seg) {
			return bad("segment '" + seg + "' must start with a letter or underscore")
		}
	}

	return Token{Raw: raw, Path: path, Member: member}, nil
}

// splitSegments splits on '.' and '/', keeping empty segments
func splitSegments(path string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' || path[i] == '/' {
			segs = append(segs, path[start:i])
			start = i + 1
		}
	}
	return append(segs, path[start:])
}

func validSegment(seg string) bool {
	c := seg[0]
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// validMember accepts Name and Recv.Method
func validMember(m string) bool {
	recv, method, dotted := strings.Cut(m, ".")
	if !dotted {
		return isIdent(m)
	}
	return isIdent(recv) && isIdent(method)
}

func isIdent(s string) bool {
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return s != ""
}
