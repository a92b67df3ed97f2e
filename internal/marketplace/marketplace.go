// Package marketplace classifies product URLs into known marketplaces and
// derives canonical product identifiers from them.
package marketplace

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Marketplace identifies a supported e-commerce platform.
type Marketplace string

// Supported marketplaces.
const (
	MercadoLivre Marketplace = "mercado_livre"
	Magalu       Marketplace = "magalu"
	Shopee       Marketplace = "shopee"
	Amazon       Marketplace = "amazon"
)

// ErrUnsupportedMarketplace is returned when a URL's hostname matches no
// known marketplace.
var ErrUnsupportedMarketplace = errors.New("marketplace not supported")

// detection rules are evaluated in order; first match wins.
var detectionRules = []struct {
	substrings []string
	m          Marketplace
}{
	{[]string{"mercadolivre", "mercadolibre"}, MercadoLivre},
	{[]string{"magazineluiza", "magalu"}, Magalu},
	{[]string{"shopee"}, Shopee},
	{[]string{"amazon"}, Amazon},
}

// Detect classifies a URL into a marketplace by hostname substring match.
// It is pure and side-effect-free.
func Detect(rawURL string) (Marketplace, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	hostname := strings.ToLower(u.Hostname())
	if hostname == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMarketplace, rawURL)
	}

	for _, rule := range detectionRules {
		for _, sub := range rule.substrings {
			if strings.Contains(hostname, sub) {
				return rule.m, nil
			}
		}
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupportedMarketplace, hostname)
}

// Origin returns the canonical https origin for a marketplace. It is used
// to absolutize relative links found on listing pages.
func (m Marketplace) Origin() string {
	switch m {
	case MercadoLivre:
		return "https://www.mercadolivre.com.br"
	case Magalu:
		return "https://www.magazineluiza.com.br"
	case Shopee:
		return "https://shopee.com.br"
	case Amazon:
		return "https://www.amazon.com.br"
	default:
		return ""
	}
}

// StoreName returns the human-readable store label persisted on deals.
func (m Marketplace) StoreName() string {
	switch m {
	case MercadoLivre:
		return "Mercado Livre"
	case Magalu:
		return "Magalu"
	case Shopee:
		return "Shopee"
	case Amazon:
		return "Amazon"
	default:
		return "Outros"
	}
}
