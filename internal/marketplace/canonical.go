package marketplace

import (
	"regexp"
	"strings"
)

var (
	mlbPattern        = regexp.MustCompile(`(MLB-?\d+)`)
	shopeeItemPattern = regexp.MustCompile(`i\.(\d+)\.(\d+)`)
	shopeePathPattern = regexp.MustCompile(`/product/(\d+)/(\d+)`)
)

// CanonicalID derives the stable external identifier used for
// deduplication from a product URL. The result is invariant under
// query-string and trailing-slash variation of the same logical product.
// An empty result means the URL carries no usable identifier and the
// candidate must be discarded, never stored.
func CanonicalID(m Marketplace, rawURL string) string {
	switch m {
	case MercadoLivre:
		// MLB-123456789 and MLB123456789 are the same product code.
		if match := mlbPattern.FindString(rawURL); match != "" {
			return strings.ReplaceAll(match, "-", "")
		}
	case Shopee:
		// Two-part shop/item identifier, either ...-i.123.456 or /product/123/456.
		if parts := shopeeItemPattern.FindStringSubmatch(rawURL); parts != nil {
			return "shp_" + parts[1] + "_" + parts[2]
		}
		if parts := shopeePathPattern.FindStringSubmatch(rawURL); parts != nil {
			return "shp_" + parts[1] + "_" + parts[2]
		}
	}

	return lastPathSegment(rawURL)
}

// lastPathSegment strips the query string and any trailing slash, then
// returns the final path segment.
func lastPathSegment(rawURL string) string {
	clean, _, _ := strings.Cut(rawURL, "?")
	clean = strings.TrimRight(clean, "/")

	idx := strings.LastIndex(clean, "/")
	if idx < 0 {
		return clean
	}
	segment := clean[idx+1:]

	// A bare origin ("https://host") leaves the hostname here; that is not
	// a product identifier.
	if strings.Contains(segment, ".") && strings.HasPrefix(clean, "http") && strings.Count(clean, "/") <= 2 {
		return ""
	}
	return segment
}
