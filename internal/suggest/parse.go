package suggest

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

const (
	// MaxSuggestions bounds every generated list.
	MaxSuggestions = 6
	// MaxTextLen is the hard per-suggestion length ceiling in runes.
	MaxTextLen = 180

	// A splitting rule wins once it yields this many usable lines.
	ruleThreshold = 2
	// Fewer usable lines than this after cleaning is a parse failure.
	minUsable = 3
)

// ErrParse means the generated text yielded too few usable candidates.
var ErrParse = errors.New("suggest: generated text yielded too few usable lines")

var (
	numberedRe = regexp.MustCompile(`\d+[.)]\s+`)
	bulletRe   = regexp.MustCompile(`(?m)^\s*[-*+•]\s+`)
	boldRe     = regexp.MustCompile(`\*\*([^*]+)\*\*`)

	leadNumberRe = regexp.MustCompile(`^\s*\d+[.)]\s*`)
	leadJunkRe   = regexp.MustCompile("^[\\s\\-*+•>#\"'`]+")
	trailJunkRe  = regexp.MustCompile("[\\s\"'`*_>#]+$")
)

// Parse turns free-form generated text into a bounded candidate list.
// Rules are tried in order; the first one that yields at least two
// usable lines wins. Surviving fewer than three usable lines fails
// the whole call.
func Parse(text string) ([]string, error) {
	rules := []func(string) []string{
		splitNumbered,
		splitBullets,
		splitBold,
		splitQuestions,
		splitSentences,
		splitNewlines,
	}
	for _, rule := range rules {
		lines := cleanAll(rule(text))
		if len(lines) < ruleThreshold {
			continue
		}
		if len(lines) < minUsable {
			return nil, ErrParse
		}
		if len(lines) > MaxSuggestions {
			lines = lines[:MaxSuggestions]
		}
		return lines, nil
	}
	return nil, ErrParse
}

// splitByMarkers cuts the text at each marker match and returns the
// segments that follow a marker. Text before the first marker (the
// model's preamble) is dropped.
func splitByMarkers(s string, re *regexp.Regexp) []string {
	locs := re.FindAllStringIndex(s, -1)
	if len(locs) < 2 {
		return nil
	}
	out := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(s)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		out = append(out, s[loc[1]:end])
	}
	return out
}

func splitNumbered(s string) []string { return splitByMarkers(s, numberedRe) }

func splitBullets(s string) []string { return splitByMarkers(s, bulletRe) }

func splitBold(s string) []string {
	matches := boldRe.FindAllStringSubmatch(s, -1)
	if len(matches) < 2 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

func splitQuestions(s string) []string {
	pieces := strings.SplitAfter(s, "?")
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if strings.HasSuffix(strings.TrimSpace(p), "?") {
			out = append(out, p)
		}
	}
	if len(out) < 2 {
		return nil
	}
	return out
}

// splitSentences breaks on `.`, `!` or `?` followed by whitespace and
// a capital letter.
func splitSentences(s string) []string {
	runes := []rune(s)
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j > i+1 && j < len(runes) && unicode.IsUpper(runes[j]) {
			out = append(out, string(runes[start:i+1]))
			start = j
			i = j - 1
		}
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	if len(out) < 2 {
		return nil
	}
	return out
}

func splitNewlines(s string) []string { return strings.Split(s, "\n") }

// cleanAll strips residual markers from each line, drops unusable
// fragments, truncates to the ceiling and de-duplicates by
// normalized text.
func cleanAll(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = cleanLine(l)
		if !usable(l) {
			continue
		}
		l = Truncate(l)
		key := normalizeText(l)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
	}
	return out
}

func cleanLine(s string) string {
	s = strings.TrimSpace(s)
	s = leadNumberRe.ReplaceAllString(s, "")
	s = leadJunkRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "**", "")
	s = trailJunkRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// usable rejects empty lines and fragments that carry no letters
// (pure punctuation or numbering leftovers).
func usable(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// Truncate enforces the per-suggestion length ceiling, ending an
// overlong line with an ellipsis.
func Truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxTextLen {
		return s
	}
	return string(runes[:MaxTextLen-1]) + "…"
}

// normalizeText is the de-duplication key: lowercase, collapsed
// whitespace, trailing sentence punctuation removed.
func normalizeText(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimRight(s, ".!? ")
}
