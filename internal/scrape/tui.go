package scrape

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cwiklam/cheap-holidays/internal/domain"
)

// TUI listings are rendered client-side, so by the time HTML reaches the
// extractor the DOM is already normalized: fixed selectors are enough
// and the heuristics stay minimal. All data-* attributes under a tile
// are captured verbatim into the raw payload so a site markup change
// still leaves something to reprocess.

const (
	// TUIOfferContainerSelector is also the stabilization selector for
	// the rendered fetch path.
	TUIOfferContainerSelector = "div.offer-tile-wrapper.offer-tile-wrapper--listingOffer"

	tuiHotelNameSelector = "span.offer-tile-body__hotel-name"
	tuiPriceSelector     = `span.price-value__amount, [data-testid="price-amount"]`
)

var tuiDateRangeRe = regexp.MustCompile(`\b\d{2}\.\d{2}\.\d{4}\s*[-–]\s*\d{2}\.\d{2}\.\d{4}\b`)

type TUIExtractor struct{}

func NewTUIExtractor() *TUIExtractor { return &TUIExtractor{} }

func (e *TUIExtractor) Extract(htmlText, baseURL string) ([]domain.OfferRecord, Report) {
	rep := Report{Selectors: []string{TUIOfferContainerSelector}}
	if strings.TrimSpace(htmlText) == "" {
		return nil, rep
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, rep
	}
	base := parseBase(baseURL)

	seen := make(map[string]bool)
	var out []domain.OfferRecord
	doc.Find(TUIOfferContainerSelector).Each(func(_ int, tile *goquery.Selection) {
		rep.CandidateNodes++
		rec, ok := parseTile(tile, base)
		if !ok {
			return
		}
		key := rec.Name + "::" + rec.URL
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, rec)
	})
	rep.FilteredNodes = rep.CandidateNodes
	rep.Offers = len(out)
	return out, rep
}

func parseTile(tile *goquery.Selection, base *url.URL) (domain.OfferRecord, bool) {
	name := squash(tile.Find(tuiHotelNameSelector).First().Text())
	if name == "" {
		return domain.OfferRecord{}, false
	}

	href := tile.Find("a").First().AttrOr("href", "")
	link := absolutize(base, href)

	tileHTML, _ := goquery.OuterHtml(tile)
	dateStr := tuiDateRangeRe.FindString(tileHTML)

	priceText := squash(tile.Find(tuiPriceSelector).First().Text())
	price, _ := parseDecimal(priceText)

	return domain.OfferRecord{
		Name:     name,
		URL:      link,
		Price:    price,
		PriceRaw: priceText,
		StartsOn: dateStr,
		Raw:      collectRaw(tile, dateStr, priceText),
	}, true
}

// collectRaw captures container classes, flattened text, node markup and
// every descendant data-* attribute (values deduplicated per name).
func collectRaw(tile *goquery.Selection, dateStr, priceText string) map[string]any {
	dataAttrs := map[string][]string{}
	tile.Find("*").AddSelection(tile).Each(func(_ int, el *goquery.Selection) {
		node := el.Get(0)
		for _, attr := range node.Attr {
			if !strings.HasPrefix(attr.Key, "data-") {
				continue
			}
			vals := dataAttrs[attr.Key]
			dup := false
			for _, v := range vals {
				if v == attr.Val {
					dup = true
					break
				}
			}
			if !dup {
				dataAttrs[attr.Key] = append(vals, attr.Val)
			}
		}
	})

	tileHTML, _ := goquery.OuterHtml(tile)
	raw := map[string]any{
		"container_classes":   tile.AttrOr("class", ""),
		"raw_text":            squash(tile.Text()),
		"raw_html":            tileHTML,
		"detected_date":       dateStr,
		"detected_price_text": priceText,
	}
	for k, v := range dataAttrs {
		raw[k] = v
	}
	return raw
}
