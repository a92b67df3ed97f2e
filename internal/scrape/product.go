package scrape

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bissquit/promo-garden/internal/domain"
	"github.com/bissquit/promo-garden/internal/marketplace"
)

// ProductExtractor parses a single product page into the upsert payload
// used by the queued scrape variant.
type ProductExtractor interface {
	Marketplace() marketplace.Marketplace
	ExtractProduct(html, sourceURL string) (*domain.Product, error)
}

// ErrProductIncomplete is returned when a product page yields no title or
// no price.
var ErrProductIncomplete = errors.New("product page missing title or price")

// ProductForMarketplace returns the product-page extractor for a
// marketplace.
func ProductForMarketplace(m marketplace.Marketplace) (ProductExtractor, error) {
	switch m {
	case marketplace.MercadoLivre:
		return &mlProductExtractor{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoExtractor, m)
	}
}

type mlProductExtractor struct{}

func (e *mlProductExtractor) Marketplace() marketplace.Marketplace {
	return marketplace.MercadoLivre
}

var (
	mlPDPTitleSelectors = []string{
		`h1.ui-pdp-title`,
		`h1[class*="title"]`,
		`.ui-pdp-title`,
	}
	mlPDPPriceSelectors = []string{
		`.andes-money-amount__fraction`,
		`.price-tag-fraction`,
		`span[class*="price-tag-fraction"]`,
	}
	mlPDPSellerSelectors = []string{
		`.ui-pdp-seller__link-trigger-button`,
		`a[class*="seller"] span`,
		`.ui-pdp-seller__header__title`,
	}
	mlPDPRatingSelectors = []string{
		`.ui-pdp-review__rating`,
		`.ui-pdp-reviews__rating__average`,
		`span[class*="rating"]`,
	}
	mlPDPReviewSelectors = []string{
		`.ui-pdp-review__amount`,
		`.ui-pdp-reviews__subtitle`,
	}

	inlinePricePattern = regexp.MustCompile(`R\$\s*(\d+(?:[.,]\d+)?)`)
	ratingPattern      = regexp.MustCompile(`(\d+[.,]\d+)`)
	digitsPattern      = regexp.MustCompile(`\d+`)
)

func (e *mlProductExtractor) ExtractProduct(html, sourceURL string) (*domain.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	title := firstText(doc.Selection, mlPDPTitleSelectors)
	priceCents := e.extractPriceCents(doc, html)
	if title == "" || priceCents == 0 {
		return nil, ErrProductIncomplete
	}

	images := collectImages(doc)
	mainImage := ""
	if len(images) > 0 {
		mainImage = images[0]
	}

	p := &domain.Product{
		Marketplace:        string(marketplace.MercadoLivre),
		CanonicalProductID: marketplace.CanonicalID(marketplace.MercadoLivre, sourceURL),
		Title:              title,
		PriceCents:         priceCents,
		Currency:           "BRL",
		Rating:             parseRating(firstText(doc.Selection, mlPDPRatingSelectors)),
		ReviewCount:        parseReviewCount(firstText(doc.Selection, mlPDPReviewSelectors)),
		SellerName:         firstText(doc.Selection, mlPDPSellerSelectors),
		Category:           breadcrumbCategory(doc),
		MainImageURL:       mainImage,
		Images:             images,
		URLAffiliate:       sourceURL,
		URLCanonical:       sourceURL,
	}
	return p, nil
}

// extractPriceCents prefers the JSON-LD Product block, then DOM price
// selectors, then a last-ditch scan of the raw page text.
func (e *mlProductExtractor) extractPriceCents(doc *goquery.Document, html string) int {
	if cents := ldJSONPriceCents(doc); cents > 0 {
		return cents
	}

	for _, sel := range mlPDPPriceSelectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			if v := ParsePrice(text); v > 0 {
				return toCents(v)
			}
		}
	}

	if match := inlinePricePattern.FindStringSubmatch(html); match != nil {
		if v := ParsePrice(match[1]); v > 0 {
			return toCents(v)
		}
	}
	return 0
}

// ldJSONPriceCents extracts the offer price from an embedded JSON-LD
// Product block.
func ldJSONPriceCents(doc *goquery.Document) int {
	var cents int
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var payload struct {
			Type   string `json:"@type"`
			Offers struct {
				Price json.Number `json:"price"`
			} `json:"offers"`
		}
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return true
		}
		if payload.Type != "Product" {
			return true
		}
		if v, err := payload.Offers.Price.Float64(); err == nil && v > 0 {
			cents = toCents(v)
			return false
		}
		return true
	})
	return cents
}

var productImageSelectors = []string{
	`img.ui-pdp-image`,
	`img[class*="ui-pdp-image"]`,
	`figure img`,
	`img[data-zoom]`,
}

// collectImages gathers product image URLs across selectors, dropping
// icons/logos and duplicates, capped at 10.
func collectImages(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	var images []string
	for _, sel := range productImageSelectors {
		doc.Find(sel).Each(func(_ int, img *goquery.Selection) {
			src, _ := img.Attr("src")
			if src == "" || !strings.HasPrefix(src, "http") || seen[src] {
				return
			}
			lower := strings.ToLower(src)
			if strings.Contains(lower, "icon") || strings.Contains(lower, "logo") || strings.Contains(lower, "seller") {
				return
			}
			seen[src] = true
			images = append(images, src)
		})
	}
	if len(images) > 10 {
		images = images[:10]
	}
	return images
}

func breadcrumbCategory(doc *goquery.Document) string {
	var crumbs []string
	doc.Find(`.andes-breadcrumb__item`).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			crumbs = append(crumbs, text)
		}
	})
	return strings.Join(crumbs, " > ")
}

func toCents(v float64) int {
	return int(math.Round(v * 100))
}

func parseRating(s string) *float64 {
	match := ratingPattern.FindStringSubmatch(s)
	if match == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", "."), 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseReviewCount(s string) *int {
	match := digitsPattern.FindString(strings.ReplaceAll(s, ".", ""))
	if match == "" {
		return nil
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	return &n
}
