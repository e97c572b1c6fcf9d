// Package filter decides whether an extracted file takes part in a
// classification run and, if so, which bucket it lands in.
package filter

import (
	"regexp"
	"strings"
)

// KeywordMatcher holds a keyword list compiled once per run.
// In regex mode a keyword that does not compile is matched as a literal
// substring instead; Degraded lists those keywords.
type KeywordMatcher struct {
	literals []string
	patterns []*regexp.Regexp
	degraded []string
}

// NewKeywordMatcher trims keywords and drops blank ones. Matching is always
// case-insensitive.
func NewKeywordMatcher(keywords []string, useRegex bool) *KeywordMatcher {
	m := &KeywordMatcher{}
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if !useRegex {
			m.literals = append(m.literals, strings.ToLower(kw))
			continue
		}
		re, err := regexp.Compile("(?i)" + kw)
		if err != nil {
			m.literals = append(m.literals, strings.ToLower(kw))
			m.degraded = append(m.degraded, kw)
			continue
		}
		m.patterns = append(m.patterns, re)
	}
	return m
}

// Match reports whether any keyword matches name. Regex keywords search
// anywhere in name rather than requiring a full match.
func (m *KeywordMatcher) Match(name string) bool {
	if len(m.literals) > 0 {
		lower := strings.ToLower(name)
		for _, lit := range m.literals {
			if strings.Contains(lower, lit) {
				return true
			}
		}
	}
	for _, re := range m.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Degraded returns the regex keywords that fell back to literal matching.
func (m *KeywordMatcher) Degraded() []string {
	return m.degraded
}

// Empty reports whether no usable keyword remained after trimming.
func (m *KeywordMatcher) Empty() bool {
	return len(m.literals) == 0 && len(m.patterns) == 0
}

// MatchesKeywords is the one-shot form of KeywordMatcher.Match.
func MatchesKeywords(name string, keywords []string, useRegex bool) bool {
	return NewKeywordMatcher(keywords, useRegex).Match(name)
}
