package scrape

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bissquit/promo-garden/internal/marketplace"
)

var shopeeCardStrategies = []cardStrategy{
	{"sqe-item", `li[data-sqe="item"]`},
	{"grid-col", `.col-xs-2-4`},
	{"search-result-item", `.shopee-search-item-result__item`},
	{"item-card-loose", `div[class*="item-card"]`},
}

var (
	shopeeTitleSelectors = []string{
		`div[data-sqe="name"]`,
		`.ie3A\+n`,
		`.Cve6sh`,
		`[class*="name"]`,
	}
	shopeePriceSelectors = []string{
		`span[data-sqe="price"]`,
		`.ZEgDH9`,
		`[class*="price"]`,
	}
)

// ShopeeExtractor parses Shopee search result pages. Shopee listings
// carry no original price, so OldPrice is synthesized or left unset per
// config.
type ShopeeExtractor struct {
	cfg Config
}

func (e *ShopeeExtractor) Marketplace() marketplace.Marketplace {
	return marketplace.Shopee
}

func (e *ShopeeExtractor) Extract(html, sourceURL string) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	cards, strategy := discoverCards(doc, shopeeCardStrategies)
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

func (e *ShopeeExtractor) parseCard(card *goquery.Selection) (Candidate, bool) {
	link := firstMatch(card, []string{`a[data-sqe="link"]`, `a`})
	if link == nil {
		return Candidate{}, false
	}
	href, _ := link.Attr("href")
	if href == "" {
		return Candidate{}, false
	}
	originalURL := absolutize(marketplace.Shopee, href)

	title := firstText(card, shopeeTitleSelectors)
	if title == "" {
		// Shopee hides names behind obfuscated classes; image alt text is
		// the sturdiest fallback.
		title = strings.TrimSpace(card.Find("img").Last().AttrOr("alt", ""))
	}
	if title == "" {
		return Candidate{}, false
	}

	price := ParsePrice(firstText(card, shopeePriceSelectors))
	if price == 0 {
		return Candidate{}, false
	}

	var oldPrice float64
	if e.cfg.SynthesizeOldPrice > 0 {
		oldPrice = price * e.cfg.SynthesizeOldPrice
	}

	return Candidate{
		Title:       title,
		Price:       price,
		OldPrice:    oldPrice,
		OriginalURL: originalURL,
		ImageURL:    strings.TrimSpace(card.Find("img").First().AttrOr("src", "")),
		Category:    DetectCategory(title, originalURL),
	}, true
}
