package render

import "strings"

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// segment is either literal markup or a placeholder. For placeholders text
// keeps the original source so unresolved ones can be written back untouched.
type segment struct {
	text  string
	key   string
	isKey bool
}

// tokenize splits markup into literal text and {{ key }} placeholders in one
// left-to-right pass. When delimiters nest ("{{ {{a}} }}") the innermost pair
// wins and the outer braces stay literal. Keys are trimmed and may not contain
// braces, angle brackets or line breaks.
func tokenize(markup string) []segment {
	var out []segment
	i := 0
	for i < len(markup) {
		open := strings.Index(markup[i:], openDelim)
		if open < 0 {
			break
		}
		open += i
		end := strings.Index(markup[open+len(openDelim):], closeDelim)
		if end < 0 {
			break
		}
		end += open + len(openDelim)

		inner := markup[open+len(openDelim) : end]
		if nested := strings.LastIndex(inner, openDelim); nested >= 0 {
			open += len(openDelim) + nested
			inner = markup[open+len(openDelim) : end]
		}

		key := strings.TrimSpace(inner)
		if !validKey(key) {
			out = appendText(out, markup[i:open+len(openDelim)])
			i = open + len(openDelim)
			continue
		}

		out = appendText(out, markup[i:open])
		out = append(out, segment{text: markup[open : end+len(closeDelim)], key: key, isKey: true})
		i = end + len(closeDelim)
	}
	if i < len(markup) {
		out = appendText(out, markup[i:])
	}
	return out
}

func appendText(segs []segment, s string) []segment {
	if s == "" {
		return segs
	}
	if n := len(segs); n > 0 && !segs[n-1].isKey {
		segs[n-1].text += s
		return segs
	}
	return append(segs, segment{text: s})
}

func validKey(key string) bool {
	return key != "" && !strings.ContainsAny(key, "{}<>\r\n")
}

// Placeholders returns the distinct placeholder keys of markup in order of first use.
func Placeholders(markup string) []string {
	seen := map[string]bool{}
	var keys []string
	for _, s := range tokenize(markup) {
		if s.isKey && !seen[s.key] {
			seen[s.key] = true
			keys = append(keys, s.key)
		}
	}
	return keys
}
