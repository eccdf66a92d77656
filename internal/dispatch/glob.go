// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import "strings"

// HasWildcard reports whether s contains any OSC pattern metacharacter.
// The tree walk uses it per component to choose between a direct child
// lookup and pattern matching; the choice between the full-path table
// and the tree walk is made by the address's '!' prefix instead.
func HasWildcard(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// MatchComponent reports whether pattern matches str as a single path
// component (neither argument may contain '/': callers split the full
// address into components first, which is what makes "a*/def" match only
// component-wise — '*' never crosses a '/' boundary because '/' is never
// part of either string here).
//
// Supports '*' (greedy, any run including empty), '?' (exactly one char),
// '[set]'/'[!set]' character classes with ranges and a literal leading
// ']' or '-', and '{a,b,c}' alternation. The whole component must be
// consumed for a match.
func MatchComponent(pattern, str string) bool {
	return matchHere(pattern, str)
}

func matchHere(p, s string) bool {
	for {
		if p == "" {
			return s == ""
		}
		switch p[0] {
		case '*':
			rest := p[1:]
			// Prefix-skip optimization: if the pattern after '*' starts with
			// a literal character, only try match points where that
			// character actually occurs in s instead of every index.
			if rest != "" && !isMeta(rest[0]) {
				lit := rest[0]
				for i := 0; i <= len(s); i++ {
					if i < len(s) && s[i] != lit {
						continue
					}
					if matchHere(rest, s[i:]) {
						return true
					}
				}
				return false
			}
			for i := 0; i <= len(s); i++ {
				if matchHere(rest, s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if s == "" {
				return false
			}
			p, s = p[1:], s[1:]
		case '[':
			if s == "" {
				return false
			}
			matched, rest, ok := matchClass(p, s[0])
			if !ok || !matched {
				return false
			}
			p, s = rest, s[1:]
		case '{':
			return matchAlternation(p, s)
		default:
			if s == "" || s[0] != p[0] {
				return false
			}
			p, s = p[1:], s[1:]
		}
	}
}

func isMeta(c byte) bool {
	return c == '*' || c == '?' || c == '[' || c == '{'
}

// matchClass parses a leading "[...]" class in p (p[0] == '['), testing c
// against it. It returns (matched, rest-of-pattern-after-']', parsedOK).
func matchClass(p string, c byte) (matched bool, rest string, ok bool) {
	i := 1
	negate := false
	if i < len(p) && p[i] == '!' {
		negate = true
		i++
	}
	inSet := false
	first := true
	for i < len(p) && (p[i] != ']' || first) {
		first = false
		if i+2 < len(p) && p[i+1] == '-' && p[i+2] != ']' {
			lo, hi := p[i], p[i+2]
			if lo <= c && c <= hi {
				inSet = true
			}
			i += 3
			continue
		}
		if p[i] == c {
			inSet = true
		}
		i++
	}
	if i >= len(p) || p[i] != ']' {
		return false, p, false // malformed class, never matches
	}
	rest = p[i+1:]
	if negate {
		inSet = !inSet
	}
	return inSet, rest, true
}

// matchAlternation handles a top-level "{a,b,c}rest" pattern, p[0] == '{'.
func matchAlternation(p, s string) bool {
	close := strings.IndexByte(p, '}')
	if close < 0 {
		return false // malformed alternation, never matches
	}
	alts := strings.Split(p[1:close], ",")
	rest := p[close+1:]
	for _, alt := range alts {
		if strings.HasPrefix(s, alt) && matchHere(rest, s[len(alt):]) {
			return true
		}
	}
	return false
}
