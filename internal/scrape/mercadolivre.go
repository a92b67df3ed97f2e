package scrape

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bissquit/promo-garden/internal/marketplace"
)

// Card strategies, newest layout first. The 2024+ React frontend renders
// POLYCARD components; older search layouts remain as fallbacks.
var mlCardStrategies = []cardStrategy{
	{"polycard", `div[id="POLYCARD"]`},
	{"search-layout-item", `li.ui-search-layout__item`},
	{"search-result-wrapper", `div.ui-search-result__wrapper`},
	{"poly-card", `div.poly-card`},
	{"search-item-loose", `li[class*="ui-search"]`},
	{"poly-card-loose", `div[class*="poly-card"]`},
	{"search-layout-list", `ol.ui-search-layout li`},
	{"andes-card", `div.andes-card`},
}

var (
	mlTitleSelectors = []string{
		`.ui-search-item__title`,
		`.poly-component__title`,
		`h2.ui-search-item__title`,
		`h2`,
		`a[class*="title"]`,
	}
	mlLinkSelectors = []string{
		`a.ui-search-link`,
		`a.poly-component__title`,
		`a[href*="/MLB-"]`,
		`a`,
	}
	mlCurrentPriceSelectors = []string{
		`.poly-price__current .andes-money-amount__fraction`,
		`.ui-search-price__second-line .andes-money-amount__fraction`,
		`.price-tag-amount .price-tag-fraction`,
	}
	mlOldPriceSelectors = []string{
		`.poly-price__old .andes-money-amount__fraction`,
		`.ui-search-price__original-value .andes-money-amount__fraction`,
	}
)

// MercadoLivreExtractor parses Mercado Livre listing pages.
type MercadoLivreExtractor struct {
	cfg Config
}

func (e *MercadoLivreExtractor) Marketplace() marketplace.Marketplace {
	return marketplace.MercadoLivre
}

func (e *MercadoLivreExtractor) Extract(html, sourceURL string) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	cards, strategy := discoverCards(doc, mlCardStrategies)
	if cards == nil {
		slog.Warn("no product cards found", "marketplace", e.Marketplace(), "source_url", sourceURL)
		return nil, nil
	}
	slog.Debug("discovered product cards",
		"marketplace", e.Marketplace(),
		"strategy", strategy,
		"count", cards.Length(),
	)

	candidates := make([]Candidate, 0, cards.Length())
	cards.Each(func(_ int, card *goquery.Selection) {
		if c, ok := e.parseCard(card); ok {
			candidates = append(candidates, c)
		}
	})

	return candidates, nil
}

// parseCard extracts one candidate. A card missing a resolvable title,
// link, or price is skipped, never fatal to the page.
func (e *MercadoLivreExtractor) parseCard(card *goquery.Selection) (Candidate, bool) {
	title := firstText(card, mlTitleSelectors)
	if title == "" {
		return Candidate{}, false
	}

	link := firstMatch(card, mlLinkSelectors)
	if link == nil {
		return Candidate{}, false
	}
	href, _ := link.Attr("href")
	if href == "" {
		return Candidate{}, false
	}
	if !strings.Contains(href, "mercadolivre.com.br") && !strings.HasPrefix(href, "/") {
		return Candidate{}, false
	}
	originalURL := absolutize(marketplace.MercadoLivre, href)

	price := ParsePrice(firstText(card, mlCurrentPriceSelectors))
	if price == 0 {
		// No dedicated current-price container matched: collect every
		// price-like fragment in the card and apply the tie-break
		// heuristic.
		var fragments []float64
		card.Find(`.andes-money-amount__fraction`).Each(func(_ int, frag *goquery.Selection) {
			if v := ParsePrice(frag.Text()); v > 0 {
				fragments = append(fragments, v)
			}
		})
		price = selectCurrentPrice(fragments)
	}
	if price == 0 {
		return Candidate{}, false
	}

	oldPrice := ParsePrice(firstText(card, mlOldPriceSelectors))
	if oldPrice == 0 && e.cfg.SynthesizeOldPrice > 0 {
		oldPrice = price * e.cfg.SynthesizeOldPrice
	}
	// An "original" price below the current price is layout noise.
	if oldPrice > 0 && oldPrice < price {
		oldPrice = 0
	}

	return Candidate{
		Title:       title,
		Price:       price,
		OldPrice:    oldPrice,
		OriginalURL: originalURL,
		ImageURL:    cardImage(card),
		Category:    DetectCategory(title, originalURL),
	}, true
}

// cardImage prefers lazy-loading attributes, which hold the real image
// URL, over src, which is often a base64 placeholder.
func cardImage(card *goquery.Selection) string {
	img := card.Find("img").First()
	if img.Length() == 0 {
		return ""
	}
	if src, ok := img.Attr("data-src"); ok && src != "" {
		return src
	}
	if src, ok := img.Attr("data-lazy"); ok && src != "" {
		return src
	}
	if src, ok := img.Attr("src"); ok && !strings.HasPrefix(src, "data:image") {
		return src
	}
	return ""
}
