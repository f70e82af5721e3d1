package watcher

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ExclusionMatcher matches paths against glob exclusion patterns. A bare
// name such as "raw" excludes any file or directory of that name and
// everything below it; other patterns match at any depth.
type ExclusionMatcher struct {
	patterns []string
	regexps  []*regexp.Regexp
}

// NewExclusionMatcher compiles patterns
func NewExclusionMatcher(patterns []string) (*ExclusionMatcher, error) {
	em := &ExclusionMatcher{patterns: patterns}
	for _, pattern := range patterns {
		for _, expanded := range expandPattern(normalizePattern(pattern)) {
			re, err := globToRegex(expanded)
			if err != nil {
				return nil, fmt.Errorf("invalid exclusion pattern %q: %w", pattern, err)
			}
			em.regexps = append(em.regexps, re)
		}
	}
	return em, nil
}

// Patterns returns the patterns as configured
func (em *ExclusionMatcher) Patterns() []string {
	return em.patterns
}

// IsExcluded reports whether path matches any pattern
func (em *ExclusionMatcher) IsExcluded(path string) bool {
	if em == nil {
		return false
	}
	path = filepath.ToSlash(path)
	for _, re := range em.regexps {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

func normalizePattern(pattern string) string {
	pattern = strings.ReplaceAll(pattern, `\`, "/")
	pattern = strings.TrimPrefix(pattern, "./")
	return strings.TrimSuffix(pattern, "/")
}

// expandPattern anchors a pattern at any depth; bare names also cover
// their contents
func expandPattern(pattern string) []string {
	bare := !isGlob(pattern) && !strings.Contains(pattern, "/")
	if !strings.HasPrefix(pattern, "**/") && !strings.HasPrefix(pattern, "/") {
		pattern = "**/" + pattern
	}
	if bare {
		return []string{pattern, pattern + "/**"}
	}
	return []string{pattern}
}

func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// globToRegex converts a glob to an anchored regular expression. "**"
// crosses directories, "*" and "?" do not.
func globToRegex(pattern string) (*regexp.Regexp, error) {
	var re strings.Builder
	re.WriteString("^")

	i := 0
	for i < len(pattern) {
		switch pattern[i] {
		case '*':
			switch {
			case strings.HasPrefix(pattern[i:], "**/"):
				re.WriteString("(?:.*/)?")
				i += 3
			case strings.HasPrefix(pattern[i:], "**"):
				re.WriteString(".*")
				i += 2
			default:
				re.WriteString("[^/]*")
				i++
			}
		case '?':
			re.WriteString("[^/]")
			i++
		case '[':
			j := i + 1
			var class strings.Builder
			if j < len(pattern) && pattern[j] == '!' {
				class.WriteString("[^")
				j++
			} else {
				class.WriteString("[")
			}
			for j < len(pattern) && pattern[j] != ']' {
				if pattern[j] == '\\' && j+1 < len(pattern) {
					class.WriteString(pattern[j : j+2])
					j += 2
					continue
				}
				class.WriteByte(pattern[j])
				j++
			}
			if j >= len(pattern) {
				// unclosed bracket is a literal
				re.WriteString(`\[`)
				i++
				continue
			}
			class.WriteByte(']')
			re.WriteString(class.String())
			i = j + 1
		case '\\':
			if i+1 < len(pattern) {
				re.WriteString(regexp.QuoteMeta(pattern[i+1 : i+2]))
				i += 2
			} else {
				re.WriteString(`\\`)
				i++
			}
		default:
			re.WriteString(regexp.QuoteMeta(pattern[i : i+1]))
			i++
		}
	}

	re.WriteString("$")
	return regexp.Compile(re.String())
}
