// Package affiliate rewrites product URLs into tracked affiliate links.
package affiliate

import (
	"errors"
	"log/slog"
	"net/url"

	"github.com/bissquit/promo-garden/internal/marketplace"
)

// ErrInsecureLink is returned when a generated link is not HTTPS. Callers
// drop the deal instead of publishing a downgradable link.
var ErrInsecureLink = errors.New("affiliate link is not https")

// Config holds per-marketplace affiliate credentials. Empty values mean
// the marketplace link passes through untagged.
type Config struct {
	ShopeeAffiliateID  string `koanf:"shopee_affiliate_id"`
	MagaluPartnerID    string `koanf:"magalu_partner_id"`
	AmazonAssociateTag string `koanf:"amazon_associate_tag"`
}

// Builder produces affiliate links per marketplace.
type Builder struct {
	cfg Config
}

func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// Generate returns the affiliate form of originalURL. Tagging failures
// fall back to the original URL so a broken credential never loses a
// deal; only a non-HTTPS result is an error.
func (b *Builder) Generate(m marketplace.Marketplace, originalURL string) (string, error) {
	link := originalURL

	switch m {
	case marketplace.MercadoLivre:
		// Mercado Livre attributes through its own social links, which the
		// pipeline cannot mint server side. The product URL goes out as is.
	case marketplace.Shopee:
		link = b.tagQueryParam(originalURL, "af_id", b.cfg.ShopeeAffiliateID)
	case marketplace.Magalu:
		link = b.tagQueryParam(originalURL, "partner_id", b.cfg.MagaluPartnerID)
	case marketplace.Amazon:
		link = b.tagQueryParam(originalURL, "tag", b.cfg.AmazonAssociateTag)
	}

	u, err := url.Parse(link)
	if err != nil || u.Scheme != "https" {
		return "", ErrInsecureLink
	}
	return link, nil
}

// tagQueryParam appends key=value to rawURL, keeping existing query
// parameters. Unparseable URLs pass through untagged.
func (b *Builder) tagQueryParam(rawURL, key, value string) string {
	if value == "" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		slog.Warn("affiliate tagging skipped", "url", rawURL, "error", err)
		return rawURL
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
