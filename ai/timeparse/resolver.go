// Package timeparse resolves natural-language temporal expressions into
// absolute timestamps and minute durations. Resolution is always relative
// to a caller-supplied reference time, never the wall clock, so results
// are reproducible.
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// AmbiguousTimeError signals that an expression could not be resolved to a
// concrete timestamp. Callers fall back to a clarification turn instead of
// guessing.
type AmbiguousTimeError struct {
	Expression string
}

func (e *AmbiguousTimeError) Error() string {
	return fmt.Sprintf("ambiguous time expression: %q", e.Expression)
}

// AmbiguousDurationError signals that an expression could not be resolved
// to a minute duration.
type AmbiguousDurationError struct {
	Expression string
}

func (e *AmbiguousDurationError) Error() string {
	return fmt.Sprintf("ambiguous duration expression: %q", e.Expression)
}

// Resolver converts temporal expressions against a reference time.
// It has no side effects and captures no clock.
type Resolver struct {
	parser *when.Parser
}

// NewResolver creates a resolver with English and common rules.
func NewResolver() *Resolver {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Resolver{parser: w}
}

// Absolute layouts tried before natural-language parsing. The extractor's
// LLM is prompted to emit "2006-01-02 15:04" when the user gave an exact
// date, so that path must not depend on the NL parser.
var absoluteLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ResolveTime resolves expression deterministically against ref.
// Unparsable input yields *AmbiguousTimeError.
func (r *Resolver) ResolveTime(expression string, ref time.Time) (time.Time, error) {
	expr := strings.TrimSpace(expression)
	if expr == "" {
		return time.Time{}, &AmbiguousTimeError{Expression: expression}
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, expr, ref.Location()); err == nil {
			return t, nil
		}
	}

	// Bare clock time ("14:00", "2 PM") resolves on the reference day.
	if t, ok := parseClockOnly(expr, ref); ok {
		return adjustPartOfDay(expr, t), nil
	}

	result, err := r.parser.Parse(expr, ref)
	if err != nil || result == nil {
		return time.Time{}, &AmbiguousTimeError{Expression: expression}
	}

	return adjustPartOfDay(expr, result.Time), nil
}

var durationPatterns = []struct {
	re      *regexp.Regexp
	minutes func(groups []string) int
}{
	{
		re:      regexp.MustCompile(`(\d+)\s*and\s*a\s*half\s*h(?:ou)?rs?`),
		minutes: func(g []string) int { n, _ := strconv.Atoi(g[1]); return n*60 + 30 },
	},
	{
		re:      regexp.MustCompile(`half\s+an?\s+h(?:ou)?r`),
		minutes: func([]string) int { return 30 },
	},
	{
		re:      regexp.MustCompile(`an?\s+h(?:ou)?r`),
		minutes: func([]string) int { return 60 },
	},
	{
		re:      regexp.MustCompile(`(\d+(?:\.\d+)?)\s*h(?:ou)?rs?`),
		minutes: func(g []string) int { f, _ := strconv.ParseFloat(g[1], 64); return int(f * 60) },
	},
	{
		re:      regexp.MustCompile(`(\d+)\s*m(?:in(?:ute)?s?)?\b`),
		minutes: func(g []string) int { n, _ := strconv.Atoi(g[1]); return n },
	},
}

// ResolveDuration resolves a duration expression into minutes.
// Unparsable input yields *AmbiguousDurationError.
func (r *Resolver) ResolveDuration(expression string) (int, error) {
	expr := strings.ToLower(strings.TrimSpace(expression))
	if expr == "" {
		return 0, &AmbiguousDurationError{Expression: expression}
	}

	for _, p := range durationPatterns {
		if groups := p.re.FindStringSubmatch(expr); groups != nil {
			if m := p.minutes(groups); m > 0 {
				return m, nil
			}
		}
	}

	// A bare number defaults to hours when small, minutes when large.
	if f, err := strconv.ParseFloat(expr, 64); err == nil && f > 0 {
		if f <= 8 {
			return int(f * 60), nil
		}
		return int(f), nil
	}

	return 0, &AmbiguousDurationError{Expression: expression}
}

var clockRe = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm|AM|PM)?$`)

func parseClockOnly(expr string, ref time.Time) (time.Time, bool) {
	groups := clockRe.FindStringSubmatch(strings.TrimSpace(expr))
	if groups == nil {
		return time.Time{}, false
	}

	hour, _ := strconv.Atoi(groups[1])
	minute := 0
	if groups[2] != "" {
		minute, _ = strconv.Atoi(groups[2])
	}
	meridiem := strings.ToLower(groups[3])
	if meridiem == "" && groups[2] == "" {
		// A lone number is not a time of day.
		return time.Time{}, false
	}
	if meridiem == "pm" && hour < 12 {
		hour += 12
	}
	if meridiem == "am" && hour == 12 {
		hour = 0
	}
	if hour > 23 || minute > 59 {
		return time.Time{}, false
	}

	return time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, ref.Location()), true
}

// clockHintRe matches an explicit clock mention inside an expression, such
// as "7 pm", "14:30" or "noon".
var clockHintRe = regexp.MustCompile(`\d{1,2}:\d{2}|\d{1,2}\s*(am|pm)|noon|midnight`)

// adjustPartOfDay applies conventional clock defaults when the expression
// names a part of day without an explicit clock time: morning 09:00,
// afternoon 14:00, evening/tonight 18:00. The NL parser's own defaults for
// these words differ, so the override is unconditional on the parsed hour.
func adjustPartOfDay(expr string, t time.Time) time.Time {
	lower := strings.ToLower(expr)
	if clockHintRe.MatchString(lower) {
		return t
	}
	setHour := func(h int) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), h, 0, 0, 0, t.Location())
	}

	switch {
	case strings.Contains(lower, "morning"):
		return setHour(9)
	case strings.Contains(lower, "afternoon"):
		return setHour(14)
	case strings.Contains(lower, "evening"), strings.Contains(lower, "tonight"):
		return setHour(18)
	}
	return t
}
