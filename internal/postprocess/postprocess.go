// Package postprocess cleans raw model output before it is returned to
// callers.
//
// DESIGN: An ordered pipeline of independent pure string transforms.
// Each transform is applied to a fixpoint where needed so that Clean is
// idempotent: Clean(Clean(x)) == Clean(x) for any input. No I/O.
package postprocess

import (
	"regexp"
	"strings"
	"time"
)

// Processor runs the cleaning pipeline. The zero value is not usable;
// construct with New. The clock is injectable so time substitution is
// testable.
type Processor struct {
	now func() time.Time
}

// New creates a Processor using the wall clock.
func New() *Processor {
	return &Processor{now: time.Now}
}

// NewWithClock creates a Processor with a fixed time source. Test hook.
func NewWithClock(now func() time.Time) *Processor {
	return &Processor{now: now}
}

// Clean runs the full pipeline in order: artifact stripping, code fence
// unwrapping, placeholder substitution, cosmetic normalization.
func (p *Processor) Clean(raw string) string {
	s := raw
	// Unwrapping can expose a trailing artifact that was hidden inside the
	// fence, so strip and unwrap alternate until stable.
	for {
		prev := s
		s = stripCopyArtifact(s)
		s = unwrapCodeFence(s)
		if s == prev {
			break
		}
	}
	s = p.substitutePlaceholders(s)
	s = normalizeCurrency(s)
	s = normalizeProperNouns(s)
	return s
}

// stripCopyArtifact removes the trailing literal "Copy" token that
// copy-to-clipboard widgets leave behind when responses round-trip
// through a UI. Applied to a fixpoint so stacked artifacts also go.
func stripCopyArtifact(s string) string {
	for {
		trimmed := strings.TrimRight(s, " \t\n")
		if !strings.HasSuffix(trimmed, "Copy") {
			return s
		}
		s = strings.TrimRight(strings.TrimSuffix(trimmed, "Copy"), " \t\n")
	}
}

var fencePattern = regexp.MustCompile("(?s)\\A```(?:json)?[ \\t]*\\n(.*?)\\n?```[ \\t]*\\z")

// unwrapCodeFence removes a single outer fenced code block (```json or
// untagged) when the entire response is wrapped in one. Repeats until
// stable so a doubly wrapped response unwraps fully in one Clean call.
//
// A closing fence line inside the captured body means the response is
// really several blocks with prose between them, not one wrapped block,
// and unwrapping would splice them together. The one exception is a body
// that is itself a complete fenced block, which is the nested case.
func unwrapCodeFence(s string) string {
	for {
		trimmed := strings.TrimSpace(s)
		m := fencePattern.FindStringSubmatch(trimmed)
		if m == nil {
			return s
		}
		body := m[1]
		if hasClosingFenceLine(body) && !fencePattern.MatchString(strings.TrimSpace(body)) {
			return s
		}
		s = body
	}
}

func hasClosingFenceLine(body string) bool {
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "```" {
			return true
		}
	}
	return false
}

// Placeholder tokens the model is prompted to emit instead of guessing the
// wall-clock time. Both the canonical {{...}} spelling and the legacy
// function-call spellings that leak from older prompts are substituted.
var placeholderPatterns = []struct {
	re     *regexp.Regexp
	layout string
}{
	{regexp.MustCompile(`\{\{current_time\}\}|getCurrentTime\(\)`), "15:04"},
	{regexp.MustCompile(`\{\{current_date\}\}|getCurrentDate\(\)`), "January 2, 2006"},
	{regexp.MustCompile(`\{\{current_year\}\}|getCurrentYear\(\)`), "2006"},
	{regexp.MustCompile(`\{\{current_datetime\}\}|getCurrentDateTime\(\)`), "January 2, 2006 15:04"},
}

// substitutePlaceholders replaces templated time/date tokens with values
// computed at call time. The model cannot know the true current time, so
// this substitution deliberately breaks determinism to correct for it.
func (p *Processor) substitutePlaceholders(s string) string {
	now := p.now()
	for _, pp := range placeholderPatterns {
		s = pp.re.ReplaceAllString(s, now.Format(pp.layout))
	}
	return s
}

// RE2 has no lookahead; the trailing (\D|$) group keeps "$100$200" stable
// across repeated cleaning.
var currencyPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\$(\D|$)`)

// normalizeCurrency moves a trailing dollar sign in front of the amount:
// "100$" becomes "$100".
func normalizeCurrency(s string) string {
	return currencyPattern.ReplaceAllString(s, "$$$1$2")
}

// properNouns maps lowercase spellings to canonical capitalization.
var properNouns = map[string]string{
	"bitcoin":  "Bitcoin",
	"ethereum": "Ethereum",
	"solana":   "Solana",
	"dogecoin": "Dogecoin",
}

var properNounPattern = regexp.MustCompile(`(?i)\b(bitcoin|ethereum|solana|dogecoin)\b`)

// normalizeProperNouns canonicalizes capitalization of well-known domain
// terms. Purely cosmetic; independent of the other pipeline steps.
func normalizeProperNouns(s string) string {
	return properNounPattern.ReplaceAllStringFunc(s, func(match string) string {
		if canonical, ok := properNouns[strings.ToLower(match)]; ok {
			return canonical
		}
		return match
	})
}
