package scrape

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Pipeline categories.
const (
	CategoryPhones      = "Celulares"
	CategoryComputing   = "Informática"
	CategoryGames       = "Games"
	CategoryElectronics = "Eletrônicos"
	CategoryHome        = "Casa"
	CategoryOther       = "Outros"
)

// URL path keywords are the authoritative signal; title keywords are the
// fallback. All matching is case- and diacritic-insensitive, so "fogão"
// in a title matches the folded keyword "fogao".
var (
	urlCategoryRules = []categoryRule{
		{CategoryPhones, []string{"celulares-telefones", "celular"}},
		{CategoryComputing, []string{"informatica", "notebook", "computad"}},
		{CategoryGames, []string{"games", "game", "console", "videogame"}},
		{CategoryHome, []string{"eletrodomesticos"}},
		{CategoryElectronics, []string{"tv-audio", "eletronicos"}},
	}

	titleCategoryRules = []categoryRule{
		{CategoryPhones, []string{"iphone", "samsung galaxy", "motorola", "xiaomi", "redmi", "smartphone"}},
		{CategoryComputing, []string{"notebook", "laptop", "macbook", "dell", "lenovo", "acer", "monitor", "mouse", "teclado"}},
		{CategoryGames, []string{"ps5", "playstation", "xbox", "nintendo", "switch", "game", "jogo"}},
		{CategoryElectronics, []string{"smart tv", "tv ", "soundbar", "fones", "bluetooth"}},
		{CategoryHome, []string{"geladeira", "fogao", "microondas", "aspirador", "fritadeira", "air fryer"}},
	}
)

type categoryRule struct {
	category string
	keywords []string
}

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases and strips diacritics for keyword matching.
func fold(s string) string {
	folded, _, err := transform.String(diacriticStripper, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return folded
}

// DetectCategory infers a deal category from its URL path first, then the
// title, falling back to "Outros".
func DetectCategory(title, rawURL string) string {
	urlFolded := fold(rawURL)
	for _, rule := range urlCategoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(urlFolded, kw) {
				return rule.category
			}
		}
	}

	titleFolded := fold(title)
	for _, rule := range titleCategoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(titleFolded, kw) {
				return rule.category
			}
		}
	}

	return CategoryOther
}
