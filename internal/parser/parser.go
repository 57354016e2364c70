// Package parser extracts structured trade parameters from chat message text.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"signal-trader/internal/domain"
)

// number matches a decimal price with optional thousands separators and $ prefix.
const number = `\$?\s*([0-9]{1,3}(?:,[0-9]{3})+(?:\.[0-9]+)?|[0-9]+(?:\.[0-9]+)?)`

// tickerToken matches a symbol with an optional quote suffix (BTC, btc/usdt, 1000PEPE).
const tickerToken = `\$?([A-Za-z0-9]{1,14}(?:/[A-Za-z]{3,4})?)`

const (
	longWords  = `long|longs|longed|longing|buy|bought`
	shortWords = `short|shorts|shorted|shorting|sell|sold`
)

// DefaultRiskPercent is used when a message carries no "(N% risk)" clause.
const DefaultRiskPercent = 1.0

// maxLeverage bounds what is accepted as a leverage token.
const maxLeverage = 125

// stopwords are tokens adjacent to direction keywords that are never tickers.
var stopwords = map[string]bool{
	"A": true, "AN": true, "THE": true, "AT": true, "ON": true, "IN": true, "MY": true,
	"THIS": true, "HERE": true, "NOW": true, "SOME": true, "MORE": true, "AGAIN": true,
	"ENTRY": true, "SL": true, "TP": true, "TPS": true, "TARGET": true, "TARGETS": true,
	"RISK": true, "POSITION": true, "LIMIT": true, "MARKET": true, "ORDER": true,
	"LONG": true, "SHORT": true, "LONGED": true, "SHORTED": true, "AND": true, "OR": true,
	"I": true, "WE": true, "IS": true, "IT": true, "TO": true, "FOR": true, "OF": true,
}

// quoteSuffixes are stripped from tickers written as pairs.
var quoteSuffixes = []string{"USDT", "USDC", "PERP", "USD"}

type replacement struct {
	pattern *regexp.Regexp
	with    string
}

// Matches reports which of the four signal patterns were found.
type Matches struct {
	Direction bool
	Entry     bool
	StopLoss  bool
	Target    bool
}

// Count returns the number of matched patterns.
func (m Matches) Count() int {
	n := 0
	for _, ok := range []bool{m.Direction, m.Entry, m.StopLoss, m.Target} {
		if ok {
			n++
		}
	}
	return n
}

// Parser implements signal detection and extraction with pattern matching.
// Parser is stateless and safe for concurrent use.
type Parser struct {
	direction   *regexp.Regexp
	longWord    *regexp.Regexp
	entryColon  *regexp.Regexp
	entryAt     *regexp.Regexp
	stopLoss    *regexp.Regexp
	target      *regexp.Regexp
	targetNext  *regexp.Regexp
	risk        *regexp.Regexp
	leverageX   *regexp.Regexp
	leverageKw  *regexp.Regexp
	tickerAfter *regexp.Regexp
	tickerDir   *regexp.Regexp
	tickerEntry *regexp.Regexp
	cashtag     *regexp.Regexp
	status      *regexp.Regexp
	posted      *regexp.Regexp
	whitespace  *regexp.Regexp
	ocrFixes    []replacement
}

// New creates a Parser.
func New() *Parser {
	return &Parser{
		direction:  regexp.MustCompile(`(?i)\b(?:` + longWords + `|` + shortWords + `)\b`),
		longWord:   regexp.MustCompile(`(?i)\b(?:` + longWords + `)\b`),
		entryColon: regexp.MustCompile(`(?i)\bentry\s*:?\s*` + number),
		entryAt:    regexp.MustCompile(`(?i)\bat\s+` + number),
		// Matches: "sl- 65200", "SL: 65200", "SL 65200"
		stopLoss: regexp.MustCompile(`(?i)\bsl(?:\s*-|\s*:|\s)\s*` + number),
		// Matches: "TP: 70000", "TPs: 70000", "TP1 70000", "target 70000"
		target:     regexp.MustCompile(`(?i)\b(?:tps?[0-9]?|targets?)\s*[:\-]?\s*` + number),
		targetNext: regexp.MustCompile(`(?i)^\s*(?:,|/|&|\band\b)\s*` + number),
		risk:       regexp.MustCompile(`(?i)\(?\s*([0-9]+(?:\.[0-9]+)?)\s*%\s*risk\b`),
		leverageX:  regexp.MustCompile(`(?i)\b([0-9]{1,3}(?:\.[0-9]+)?)\s?x\b`),
		leverageKw: regexp.MustCompile(`(?i)\b(?:leverage|lev)\s*:?\s*([0-9]{1,3}(?:\.[0-9]+)?)`),

		tickerAfter: regexp.MustCompile(`(?i)\b(?:` + longWords + `|` + shortWords + `)\s+(?:on\s+)?` + tickerToken),
		tickerDir:   regexp.MustCompile(`(?i)` + tickerToken + `\s+(?:` + longWords + `|` + shortWords + `)\b`),
		tickerEntry: regexp.MustCompile(`(?i)` + tickerToken + `\s+entry\b`),
		cashtag:     regexp.MustCompile(`\$([A-Za-z][A-Za-z0-9]{1,14})\b`),
		status:      regexp.MustCompile(`(?i)\bstatus\s*:?\s*([^•]+)`),
		posted:      regexp.MustCompile(`(?i)\b(?:today|yesterday) at (\d{1,2}:\d{2}\s*[AP]M)`),

		whitespace: regexp.MustCompile(`\s+`),
		ocrFixes: []replacement{
			{regexp.MustCompile(`(?i)\b(?:entty|eniry)\b`), "entry"},
			{regexp.MustCompile(`(?i)\b(sl|tps|tp);`), "$1:"},
			{regexp.MustCompile(`(?i)\bshart\b`), "short"},
			{regexp.MustCompile(`(?i)\blang\b`), "long"},
		},
	}
}

// Normalize collapses whitespace and fixes common OCR misreads.
func (p *Parser) Normalize(text string) string {
	text = strings.TrimSpace(p.whitespace.ReplaceAllString(text, " "))
	for _, r := range p.ocrFixes {
		text = r.pattern.ReplaceAllString(text, r.with)
	}
	return text
}

// Match computes the four independent pattern matches.
func (p *Parser) Match(text string) Matches {
	text = p.posted.ReplaceAllString(p.Normalize(text), " ")
	return Matches{
		Direction: p.direction.MatchString(text),
		Entry:     p.entryColon.MatchString(text) || p.entryAt.MatchString(text),
		StopLoss:  p.stopLoss.MatchString(text),
		Target:    p.target.MatchString(text),
	}
}

// IsCandidate reports whether at least 3 of the 4 patterns are present.
// It is a lenient pre-filter; Parse may still reject the text.
func (p *Parser) IsCandidate(text string) bool {
	return p.Match(text).Count() >= 3
}

// Parse extracts a signal. Returns false if ticker, entry, stop-loss or
// target cannot be resolved. Direction and risk have defaults.
func (p *Parser) Parse(text string) (*domain.ParsedSignal, bool) {
	text = p.Normalize(text)
	posted := p.submatch(p.posted, text)
	// "Today at 3:45 PM" would otherwise read as an entry of 3.
	text = p.posted.ReplaceAllString(text, " ")

	ticker := p.extractTicker(text)
	if ticker == "" {
		return nil, false
	}

	entry, ok := firstNumber(text, p.entryColon, p.entryAt)
	if !ok {
		return nil, false
	}
	stop, ok := firstNumber(text, p.stopLoss)
	if !ok {
		return nil, false
	}
	targets := p.extractTargets(text, entry)
	if len(targets) == 0 {
		return nil, false
	}

	risk := DefaultRiskPercent
	if m := p.risk.FindStringSubmatch(text); m != nil {
		if v, err := parseNumber(m[1]); err == nil && v > 0 {
			risk = v
		}
	}

	return &domain.ParsedSignal{
		Ticker:        ticker,
		IsLong:        p.longWord.MatchString(text),
		EntryPrice:    entry,
		StopLossPrice: stop,
		TargetPrice:   targets[0],
		Targets:       targets,
		RiskPercent:   risk,
		Leverage:      p.extractLeverage(text),
		Status:        p.submatch(p.status, text),
		PostedTime:    posted,
	}, true
}

// extractTicker tries, in order: token after a direction keyword, token before
// a direction keyword, token before "Entry", then a $cashtag.
func (p *Parser) extractTicker(text string) string {
	for _, re := range []*regexp.Regexp{p.tickerAfter, p.tickerDir, p.tickerEntry, p.cashtag} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if t := cleanTicker(m[1]); t != "" {
				return t
			}
		}
	}
	return ""
}

// extractTargets returns the first target and any separator-joined followers
// ("TPs: 70000, 72000 / 75000"). A comma-grouped token that is out of scale
// with entry is read as a list: "700,720" next to an entry of 650 is two
// targets, not 700720.
func (p *Parser) extractTargets(text string, entry float64) []float64 {
	loc := p.target.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil
	}
	targets := targetValues(text[loc[2]:loc[3]], entry)
	if len(targets) == 0 {
		return nil
	}

	rest := text[loc[1]:]
	for {
		m := p.targetNext.FindStringSubmatchIndex(rest)
		if m == nil {
			break
		}
		// "72000x" or "5%" are not prices
		if m[1] < len(rest) && (rest[m[1]] == 'x' || rest[m[1]] == 'X' || rest[m[1]] == '%') {
			break
		}
		vs := targetValues(rest[m[2]:m[3]], entry)
		if len(vs) == 0 {
			break
		}
		targets = append(targets, vs...)
		rest = rest[m[1]:]
	}
	return targets
}

// targetValues parses one target token. Returns nil for a non-positive value.
func targetValues(raw string, entry float64) []float64 {
	v, err := parseNumber(raw)
	if err != nil || v <= 0 {
		return nil
	}
	if !strings.Contains(raw, ",") || inScale(v, entry) {
		return []float64{v}
	}

	var parts []float64
	for _, s := range strings.Split(raw, ",") {
		pv, err := parseNumber(strings.TrimPrefix(strings.TrimSpace(s), "$"))
		if err != nil || !inScale(pv, entry) {
			return []float64{v}
		}
		parts = append(parts, pv)
	}
	return parts
}

// inScale reports whether v is within one order of magnitude of entry.
func inScale(v, entry float64) bool {
	if entry <= 0 {
		return true
	}
	return v >= entry/10 && v <= entry*10
}

// submatch returns the trimmed first group of re in text, or "".
func (p *Parser) submatch(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func (p *Parser) extractLeverage(text string) *float64 {
	for _, re := range []*regexp.Regexp{p.leverageKw, p.leverageX} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := parseNumber(m[1])
		if err != nil || v < 1 || v > maxLeverage {
			continue
		}
		return &v
	}
	return nil
}

// firstNumber returns the first match of the first pattern that matches.
func firstNumber(text string, patterns ...*regexp.Regexp) (float64, bool) {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := parseNumber(m[1])
		if err != nil || v <= 0 {
			continue
		}
		return v, true
	}
	return 0, false
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
}

// cleanTicker upper-cases a token, strips quote suffixes and rejects stopwords.
func cleanTicker(token string) string {
	t := strings.ToUpper(strings.TrimPrefix(token, "$"))
	if i := strings.IndexByte(t, '/'); i >= 0 {
		t = t[:i]
	}
	for _, suffix := range quoteSuffixes {
		if len(t) > len(suffix)+1 && strings.HasSuffix(t, suffix) {
			t = strings.TrimSuffix(t, suffix)
			break
		}
	}
	if len(t) < 2 || stopwords[t] {
		return ""
	}
	// At least one letter; "67500" is a price, not a symbol
	if strings.IndexFunc(t, func(r rune) bool { return r >= 'A' && r <= 'Z' }) < 0 {
		return ""
	}
	return t
}
