// Package placeholder decides whether a text string is template filler
// ("Click to add title", "[Name]", "Lorem ipsum") or real authored content.
package placeholder

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Verdict is the outcome of one rule.
type Verdict int

const (
	Undecided Verdict = iota
	Placeholder
	Content
)

func (v Verdict) String() string {
	switch v {
	case Placeholder:
		return "placeholder"
	case Content:
		return "content"
	default:
		return "undecided"
	}
}

// Sample is the prepared form of a text handed to each rule.
type Sample struct {
	Raw     string
	Trimmed string
	Folded  string
	Runes   int
	Words   int
}

// Rule is one step of the cascade. The first rule returning a decided
// verdict wins.
type Rule struct {
	Name  string
	Apply func(Sample) Verdict
}

// Decision reports the verdict and the rule that produced it.
type Decision struct {
	Placeholder bool
	Rule        string
}

// Classifier applies an ordered rule cascade. The zero value is not usable;
// build one with New or NewWithRules.
type Classifier struct {
	rules []Rule
}

// New builds the default cascade from cfg.
func New(cfg Config) *Classifier {
	return NewWithRules(DefaultRules(cfg)...)
}

// NewWithRules builds a classifier with a caller supplied rule order.
func NewWithRules(rules ...Rule) *Classifier {
	return &Classifier{rules: append([]Rule(nil), rules...)}
}

// Default is the classifier built from DefaultConfig.
var Default = New(DefaultConfig())

// IsPlaceholder reports whether text should be treated as replaceable filler.
func (c *Classifier) IsPlaceholder(text string) bool {
	return c.Classify(text).Placeholder
}

// Classify runs the cascade. Text no rule decides on is considered content.
func (c *Classifier) Classify(text string) Decision {
	s := c.prepare(text)
	for _, r := range c.rules {
		switch r.Apply(s) {
		case Placeholder:
			return Decision{Placeholder: true, Rule: r.Name}
		case Content:
			return Decision{Placeholder: false, Rule: r.Name}
		}
	}
	return Decision{Rule: "default"}
}

func (c *Classifier) prepare(text string) Sample {
	trimmed := strings.TrimSpace(norm.NFC.String(text))
	// cases.Caser is not safe for concurrent use.
	return Sample{
		Raw:     text,
		Trimmed: trimmed,
		Folded:  cases.Fold().String(trimmed),
		Runes:   utf8.RuneCountInString(trimmed),
		Words:   len(strings.Fields(trimmed)),
	}
}

// DefaultRules returns the standard cascade:
// empty or very short text, placeholder patterns, known phrases, generic
// single words, long text, real-content markers, short text, then content.
func DefaultRules(cfg Config) []Rule {
	cfg = cfg.withDefaults()

	patterns := compileAll(cfg.Patterns)
	content := compileAll(cfg.ContentPatterns)
	f := cases.Fold()
	phrases := make([]string, 0, len(cfg.Phrases))
	for _, p := range cfg.Phrases {
		phrases = append(phrases, f.String(norm.NFC.String(p)))
	}
	generic := map[string]bool{}
	for _, w := range cfg.GenericWords {
		generic[f.String(norm.NFC.String(w))] = true
	}

	return []Rule{
		{Name: "empty", Apply: func(s Sample) Verdict {
			if s.Trimmed == "" || s.Runes < cfg.MinLength {
				return Placeholder
			}
			return Undecided
		}},
		{Name: "pattern", Apply: func(s Sample) Verdict {
			for _, re := range patterns {
				if re.MatchString(s.Folded) {
					return Placeholder
				}
			}
			return Undecided
		}},
		{Name: "phrase", Apply: func(s Sample) Verdict {
			for _, p := range phrases {
				if strings.Contains(s.Folded, p) {
					return Placeholder
				}
			}
			return Undecided
		}},
		{Name: "generic", Apply: func(s Sample) Verdict {
			if generic[s.Folded] {
				return Placeholder
			}
			return Undecided
		}},
		{Name: "long", Apply: func(s Sample) Verdict {
			if s.Words > cfg.MaxPlaceholderWords {
				return Content
			}
			return Undecided
		}},
		{Name: "real-content", Apply: func(s Sample) Verdict {
			for _, re := range content {
				if re.MatchString(s.Trimmed) {
					return Content
				}
			}
			return Undecided
		}},
		{Name: "short", Apply: func(s Sample) Verdict {
			if s.Runes < cfg.ShortLength || s.Words < cfg.ShortWords {
				return Placeholder
			}
			return Undecided
		}},
	}
}

// compileAll compiles every expression case-insensitively.
func compileAll(exprs []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		if !strings.HasPrefix(e, "(?i)") {
			e = "(?i)" + e
		}
		out = append(out, regexp.MustCompile(e))
	}
	return out
}
