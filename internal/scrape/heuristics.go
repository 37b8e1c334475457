package scrape

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Shared regex/DOM-pattern heuristics for scalar fields pulled out of
// free text or markup fragments. Everything here is best-effort: a miss
// is reported as a zero value, never an error.

var titleKeywords = []string{
	"hotel", "resort", "spa", "beach", "aquapark", "aqua park", "lake", "river", "club",
}

var (
	titleKeywordsRe = regexp.MustCompile(`(?i)\b(` + strings.Join(titleKeywords, "|") + `)\b`)
	priceRe         = regexp.MustCompile(`(?i)([$€£]|PLN|EUR|USD)?\s*(\d{1,3}(?:[\s,]\d{3})*(?:[.,]\d{2})?)`)
	priceTokensRe   = regexp.MustCompile(`(?i)(\bzł\b|/os\.|PLN|EUR|USD|GBP|\d+\s?zł|TFG|TFP)`)
	singleDateRe    = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})|(\d{1,2}[./-]\d{1,2}[./-]\d{2,4})`)
	dateRangeRe     = regexp.MustCompile(`(?i)(\d{1,2}\.\d{1,2})(?:\.?(\d{4}))?\s*[-–]\s*(\d{1,2}\.\d{1,2}\.\d{4})(?:[^\d]*[(（]\s*(\d+)\s*dni\s*[)）])?`)
	plnSuffixRe     = regexp.MustCompile(`(?i)\d+\s?\d*\s*zł`)
	nonDigitRe      = regexp.MustCompile(`[^0-9]`)
	nameTokenSplit  = regexp.MustCompile(`[^a-z0-9ąęśćłóżźń]+`)
)

// squash collapses all whitespace runs into single spaces and trims.
func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func hasKeyword(s string) bool { return titleKeywordsRe.MatchString(s) }

// absolutize resolves href against base. Any failure degrades to
// returning the original (possibly relative) string.
func absolutize(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") || base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// parseBase parses the page base URL; a broken base disables
// absolutization rather than failing the extraction.
func parseBase(baseURL string) *url.URL {
	if baseURL == "" {
		return nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	return u
}

// matchPrice scans free text for the first price-looking token and
// returns the normalized amount plus the raw text (with a trailing "zł"
// suffix recovered from the source when present).
func matchPrice(text string) (amount float64, raw string, ok bool) {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return 0, "", false
	}
	amountStr := strings.NewReplacer(" ", "", "\t", "", ",", "").Replace(m[2])
	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		return 0, "", false
	}
	raw = m[2]
	suffixed := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(m[2]) + `\b[^\n]{0,10}zł`)
	if found := suffixed.FindString(text); found != "" {
		raw = strings.TrimSpace(found)
	}
	return amount, raw, true
}

// parseDecimal converts loosely formatted price text ("2 499,50 zł",
// "1.234 PLN") to a number. A single comma with no dot is a decimal
// comma; otherwise dots/spaces are thousands separators.
func parseDecimal(s string) (float64, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, false
	}
	var b strings.Builder
	for _, r := range t {
		if r >= '0' && r <= '9' || r == ',' || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	t = b.String()
	if strings.Count(t, ",") == 1 && !strings.Contains(t, ".") {
		t = strings.ReplaceAll(t, ",", ".")
	} else {
		t = strings.NewReplacer(".", "", ",", "").Replace(t)
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// extractDateRange finds a "D.M[.Y] – D.M.Y" range in text and renders
// the normalized term string "D.M - D.M.Y (N dni)". When the source has
// no explicit day count the difference between the two dates is used.
func extractDateRange(text string) string {
	m := dateRangeRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	startRaw, startYear, endRaw, explicitDays := m[1], m[2], m[3], m[4]

	endParts := strings.Split(endRaw, ".")
	endYear := endParts[len(endParts)-1]
	year := startYear
	if year == "" {
		year = endYear
	}

	normalizedStart := startRaw
	if !strings.Contains(startRaw, year) {
		normalizedStart = startRaw + "." + year
	}
	sd, err := time.Parse("2.1.2006", normalizedStart)
	if err != nil {
		return ""
	}
	ed, err := time.Parse("2.1.2006", endRaw)
	if err != nil {
		return ""
	}

	days := explicitDays
	if days == "" {
		days = strconv.Itoa(int(ed.Sub(sd).Hours() / 24))
	}
	display := strings.TrimSuffix(startRaw, ".")
	return fmt.Sprintf("%s - %s (%s dni)", display, endRaw, days)
}

// extractSingleDate finds the first single date in text, normalized to
// ISO form. Used only when no range is present.
func extractSingleDate(text string) string {
	m := singleDateRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	if m[1] != "" { // already YYYY-MM-DD
		if d, err := time.Parse("2006-01-02", m[1]); err == nil {
			return d.Format("2006-01-02")
		}
		return ""
	}
	raw := strings.NewReplacer("/", ".", "-", ".").Replace(m[2])
	for _, layout := range []string{"2.1.2006", "2.1.06"} {
		if d, err := time.Parse(layout, raw); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return ""
}

// nameTokens splits a lowercased title into alphanumeric tokens
// (Polish diacritics included) for alt-text overlap scoring.
func nameTokens(name string) []string {
	parts := nameTokenSplit.Split(strings.ToLower(name), -1)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
