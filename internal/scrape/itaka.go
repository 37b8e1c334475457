package scrape

import (
	"math"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/cwiklam/cheap-holidays/internal/domain"
)

// Itaka lists offers as server-rendered cards, so the whole engine is a
// stack of DOM heuristics: broad candidate selectors re-anchored to the
// enclosing card, a text-density filter, then per-field fallback chains
// with hard rejection when a required field is missing.

var itakaDefaultSelectors = []string{
	`[data-testid="offer-list-item-button"]`,
	`[data-testid="price"]`,
	`h3.styles_title__kH0gG`,
	`[class*="offer"]`,
	`[class*="card"]`,
	`[class*="product"]`,
	`article`,
	`li`,
}

const headingSelector = "h1,h2,h3,h4,h5,h6"

const (
	minCandidateText = 25
	maxCandidateText = 800
	minTitleLen      = 5
)

type ItakaExtractor struct {
	selectors []string
}

func NewItakaExtractor() *ItakaExtractor {
	return &ItakaExtractor{selectors: itakaDefaultSelectors}
}

// NewItakaExtractorWithSelectors overrides the candidate selector list,
// mainly for fixtures exercising site-specific test hooks.
func NewItakaExtractorWithSelectors(selectors []string) *ItakaExtractor {
	return &ItakaExtractor{selectors: selectors}
}

func (e *ItakaExtractor) Extract(htmlText, baseURL string) ([]domain.OfferRecord, Report) {
	rep := Report{Selectors: e.selectors}
	if strings.HasPrefix(htmlText, "<!-- fetch") || strings.TrimSpace(htmlText) == "" {
		return nil, rep
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, rep
	}
	base := parseBase(baseURL)

	candidates := e.candidateNodes(doc)
	rep.CandidateNodes = len(candidates)

	var filtered []*goquery.Selection
	for _, c := range candidates {
		n := utf8.RuneCountInString(strings.TrimSpace(c.Text()))
		if n >= minCandidateText && n <= maxCandidateText {
			filtered = append(filtered, c)
		}
	}
	rep.FilteredNodes = len(filtered)

	seen := make(map[string]bool)
	var out []domain.OfferRecord
	for _, c := range filtered {
		rec, ok := e.extractOffer(doc, c, base, &rep)
		if !ok {
			continue
		}
		key := rec.Name + "::" + rec.URL
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, rec)
	}
	rep.Offers = len(out)
	return out, rep
}

// candidateNodes runs the selector list, lifts heading-less matches to
// the nearest ancestor that contains a heading (fragment matches get
// re-anchored to their card) and dedupes by node identity.
func (e *ItakaExtractor) candidateNodes(doc *goquery.Document) []*goquery.Selection {
	seen := make(map[*html.Node]bool)
	var out []*goquery.Selection
	for _, sel := range e.selectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			anchored := s
			if s.Find(headingSelector).Length() == 0 {
				for p := s.Parent(); p.Length() > 0; p = p.Parent() {
					if p.Find(headingSelector).Length() > 0 {
						anchored = p
						break
					}
				}
			}
			node := anchored.Get(0)
			if seen[node] {
				return
			}
			seen[node] = true
			out = append(out, anchored)
		})
	}
	return out
}

func (e *ItakaExtractor) extractOffer(doc *goquery.Document, s *goquery.Selection, base *url.URL, rep *Report) (domain.OfferRecord, bool) {
	text := squash(s.Text())

	name := e.extractTitle(s, rep)
	if utf8.RuneCountInString(name) < minTitleLen {
		return domain.OfferRecord{}, false
	}
	// The keyword match is a gate, not a preference: whichever fallback
	// tier produced the title, a non-lexicon title rejects the record.
	if !hasKeyword(name) {
		rep.MissingKeyword++
		return domain.OfferRecord{}, false
	}

	anchor := pickAnchor(s)
	link := ""
	if anchor != nil {
		href, _ := anchor.Attr("href")
		link = absolutize(base, href)
	}

	amount, priceRaw, ok := extractPriceDOM(s, rep)
	if !ok {
		amount, priceRaw, ok = extractPriceRegex(text, rep)
	}
	if !ok {
		rep.MissingPrice++
		return domain.OfferRecord{}, false
	}

	term := extractDateRange(text)
	if term == "" {
		term = extractSingleDate(text)
	}
	if term == "" {
		rep.MissingTerm++
		return domain.OfferRecord{}, false
	}

	image := extractImageByAnchor(doc, s, anchor, base)
	if image == "" {
		image = extractImageByAlt(doc, name, base, rep)
	}

	return domain.OfferRecord{
		Name:     name,
		URL:      link,
		Price:    amount,
		PriceRaw: priceRaw,
		StartsOn: term,
		ImageURL: image,
		Country:  extractCountry(s),
	}, true
}

// extractTitle walks the fallback chain: keyword heading-anchor, keyword
// heading, any heading, then text lines with price noise stripped.
func (e *ItakaExtractor) extractTitle(s *goquery.Selection, rep *Report) string {
	var picked string
	s.Find("h1 a, h2 a, h3 a, h4 a, h5 a, h6 a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if hasKeyword(a.Text()) {
			picked = squash(a.Text())
			return false
		}
		return true
	})
	if picked != "" {
		rep.KeywordTitleHits++
		return picked
	}

	s.Find(headingSelector).EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if hasKeyword(h.Text()) {
			picked = squash(h.Text())
			return false
		}
		return true
	})
	if picked != "" {
		rep.KeywordTitleHits++
		return picked
	}

	if first := s.Find(headingSelector).First(); first.Length() > 0 {
		if t := squash(first.Text()); utf8.RuneCountInString(t) >= minTitleLen {
			return t
		}
	}

	var cleaned []string
	for _, line := range strings.Split(s.Text(), "\n") {
		line = squash(line)
		if line == "" || priceRe.MatchString(line) || priceTokensRe.MatchString(line) {
			continue
		}
		cleaned = append(cleaned, line)
	}
	var kwBest string
	for _, line := range cleaned {
		if hasKeyword(line) && utf8.RuneCountInString(line) > utf8.RuneCountInString(kwBest) {
			kwBest = line
		}
	}
	if kwBest != "" {
		rep.KeywordTitleHits++
		return kwBest
	}
	for _, line := range cleaned {
		if utf8.RuneCountInString(line) >= minTitleLen {
			return line
		}
	}
	return ""
}

var listingPathRe = regexp.MustCompile(`/wczasy/`)

// pickAnchor scores every anchor under the candidate by link-signal
// strength and returns the best one, or nil when the card has none.
func pickAnchor(s *goquery.Selection) *goquery.Selection {
	var best *goquery.Selection
	bestScore := math.MinInt32
	s.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		score := 0
		if strings.Contains(href, "?id=") {
			score += 70
		}
		if listingPathRe.MatchString(href) {
			score += 50
		}
		if hasKeyword(a.Text()) {
			score += 30
		}
		if len(href) > 60 {
			score += 10
		}
		if strings.Count(href, "/") > 3 {
			score += 5
		}
		if score > bestScore {
			bestScore = score
			best = a
		}
	})
	return best
}

// extractPriceDOM reads the dedicated price container. Only text that
// carries a numeric amount with the "zł" suffix qualifies.
func extractPriceDOM(s *goquery.Selection, rep *Report) (float64, string, bool) {
	container := s.Find(`[data-testid="current-price"]`).First()
	if container.Length() == 0 {
		return 0, "", false
	}
	valueNode := container.Find("[data-price-catalog-code]").First()
	if valueNode.Length() == 0 {
		valueNode = container.Find(`span[class*="value"]`).First()
	}
	if valueNode.Length() == 0 {
		valueNode = container
	}
	rawText := squash(valueNode.Text())
	if !plnSuffixRe.MatchString(rawText) {
		return 0, "", false
	}
	numeric := nonDigitRe.ReplaceAllString(rawText, "")
	if numeric == "" {
		return 0, "", false
	}
	amount, ok := parseDecimal(numeric)
	if !ok {
		return 0, "", false
	}
	rep.PriceDOMHits++
	return amount, rawText, true
}

func extractPriceRegex(text string, rep *Report) (float64, string, bool) {
	amount, raw, ok := matchPrice(text)
	if !ok {
		return 0, "", false
	}
	rep.PriceRegexHits++
	return amount, raw, true
}

// extractImageByAnchor prefers a gallery image co-located with the
// selected anchor (same href anywhere in the document), falling back to
// gallery images inside the candidate itself.
func extractImageByAnchor(doc *goquery.Document, s *goquery.Selection, anchor *goquery.Selection, base *url.URL) string {
	var candidates []*goquery.Selection
	if anchor != nil {
		if href, ok := anchor.Attr("href"); ok && href != "" {
			doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
				if h, _ := a.Attr("href"); h == href {
					a.Find(`img[data-testid="gallery-img"]`).Each(func(_ int, img *goquery.Selection) {
						candidates = append(candidates, img)
					})
				}
			})
		}
	}
	s.Find(`img[data-testid="gallery-img"]`).Each(func(_ int, img *goquery.Selection) {
		candidates = append(candidates, img)
	})
	for _, img := range candidates {
		src := imageSrc(img)
		if src == "" {
			continue
		}
		if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			return src
		}
		return absolutize(base, src)
	}
	return ""
}

// extractImageByAlt scores every alt-bearing image in the document by
// token overlap between the alt text and the title, with a lexicon
// bonus and a length-mismatch penalty. Only a positive score counts.
func extractImageByAlt(doc *goquery.Document, name string, base *url.URL, rep *Report) string {
	tokens := nameTokens(name)
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}

	var best *goquery.Selection
	bestScore := 0.0
	doc.Find("img[alt]").Each(func(_ int, img *goquery.Selection) {
		alt := strings.TrimSpace(img.AttrOr("alt", ""))
		if alt == "" {
			return
		}
		altDown := strings.ToLower(alt)
		bonus := 0.0
		for _, kw := range titleKeywords {
			if strings.Contains(altDown, kw) {
				bonus = 10
				break
			}
		}
		overlap := 0
		for _, tok := range nameTokens(altDown) {
			if tokenSet[tok] {
				overlap++
			}
		}
		score := float64(overlap)*5 + bonus - math.Abs(float64(len(alt)-len(name)))*0.01
		if best == nil || score > bestScore {
			best = img
			bestScore = score
		}
	})
	if best == nil || bestScore <= 0 {
		return ""
	}
	src := imageSrc(best)
	if src == "" {
		return ""
	}
	rep.ImageAltHits++
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return src
	}
	return absolutize(base, src)
}

func imageSrc(img *goquery.Selection) string {
	if src := img.AttrOr("src", ""); src != "" {
		return src
	}
	return img.AttrOr("data-scrollspy", "")
}

// extractCountry reads the destination-link text when present. Unlike
// title/price/term there is no free-text fallback: absence is fine.
func extractCountry(s *goquery.Selection) string {
	dest := s.Find(`[data-testid="offer-list-item-destination"] a`).First()
	if dest.Length() == 0 {
		return ""
	}
	return squash(dest.Text())
}
