package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// cardStrategy is one named way of locating product cards in a layout.
type cardStrategy struct {
	name     string
	selector string
}

// discoverCards evaluates strategies in order and returns the result set
// of the first one that matches anything, with the strategy name for
// logging.
func discoverCards(doc *goquery.Document, strategies []cardStrategy) (*goquery.Selection, string) {
	for _, s := range strategies {
		if sel := doc.Find(s.selector); sel.Length() > 0 {
			return sel, s.name
		}
	}
	return nil, ""
}

// firstMatch returns the first selection matched by an ordered selector
// chain, or nil when none match.
func firstMatch(card *goquery.Selection, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := card.Find(sel); found.Length() > 0 {
			return found.First()
		}
	}
	return nil
}

// firstText returns the trimmed text of the first selector that matches
// and yields non-empty text.
func firstText(card *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if found := card.Find(sel); found.Length() > 0 {
			if text := strings.TrimSpace(found.First().Text()); text != "" {
				return text
			}
		}
	}
	return ""
}
