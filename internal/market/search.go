package market

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"

	"github.com/astrbot-devs/console-go/internal/models"
)

// Marketplace names commonly carry the platform prefix; it is stripped for
// display so cards show the meaningful part.
const (
	pluginPrefix = "astrbot_plugin_"
	orgPrefix    = "astrbot_"
	orgPrefixAlt = "astrbot-"
)

func normalizeStr(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// maxReadings bounds the heteronym expansion so polyphone-heavy strings do
// not explode the index.
const maxReadings = 16

func pinyinArgs(style int) pinyin.Args {
	a := pinyin.NewArgs()
	a.Style = style
	// Polyphones keep all their readings so e.g. 乐 matches both "le" and
	// "yue".
	a.Heteronym = true
	// Non-Han runes pass through so mixed names stay searchable.
	a.Fallback = func(r rune, _ pinyin.Args) []string {
		return []string{string(r)}
	}
	return a
}

func normalizeReading(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// pinyinReadings transliterates a string into its phonetic forms, lower-cased
// with whitespace removed. Every combination of heteronym readings yields a
// variant, capped at maxReadings; the dictionary-primary reading comes first.
func pinyinReadings(s string, style int) []string {
	variants := []string{""}
	for _, candidates := range pinyin.Pinyin(s, pinyinArgs(style)) {
		seen := make(map[string]bool, len(candidates))
		readings := make([]string, 0, len(candidates))
		for _, c := range candidates {
			r := normalizeReading(c)
			if r == "" || seen[r] {
				continue
			}
			seen[r] = true
			readings = append(readings, r)
		}
		if len(readings) == 0 {
			continue
		}

		next := make([]string, 0, len(variants)*len(readings))
		for _, v := range variants {
			for _, r := range readings {
				next = append(next, v+r)
			}
		}
		if len(next) > maxReadings {
			next = next[:maxReadings]
		}
		variants = next
	}
	return variants
}

func pinyinTexts(s string) []string {
	return pinyinReadings(s, pinyin.Normal)
}

func pinyinInitials(s string) []string {
	return pinyinReadings(s, pinyin.FirstLetter)
}

// trimName strips the common marketplace prefixes from a plugin name:
// the long plugin-namespace prefix first, then the short org prefix;
// anything else is kept as-is.
func trimName(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.HasPrefix(lowered, pluginPrefix):
		return lowered[len(pluginPrefix):]
	case strings.HasPrefix(lowered, orgPrefix):
		return lowered[len(orgPrefix):]
	case strings.HasPrefix(lowered, orgPrefixAlt):
		return lowered[len(orgPrefixAlt):]
	default:
		return name
	}
}

// buildSearchIndex concatenates, for display-name/name/desc/author, the raw
// value plus its transliterated and initials forms, space-joined and
// lower-cased. Filtering is then a single substring test.
func buildSearchIndex(p *models.MarketPlugin) string {
	var texts []string
	add := func(s string) {
		if s == "" {
			return
		}
		texts = append(texts, s)
		texts = append(texts, pinyinTexts(s)...)
		texts = append(texts, pinyinInitials(s)...)
	}

	add(p.DisplayName)
	add(p.Name)
	if p.TrimmedName != "" {
		texts = append(texts, p.TrimmedName)
	}
	add(p.Desc)
	add(p.Author)

	for i, t := range texts {
		texts[i] = normalizeStr(t)
	}
	return strings.Join(texts, " ")
}

// Matches reports whether a plugin matches the query: via the precomputed
// search index when present, otherwise by literal, phonetic or initials
// substring over name/display-name/trimmed-name/desc/author.
func Matches(p *models.MarketPlugin, query string) bool {
	q := normalizeStr(query)
	if q == "" {
		return true
	}

	if p.SearchIndex != "" {
		return strings.Contains(p.SearchIndex, q)
	}

	candidates := []string{p.Name, p.DisplayName, p.TrimmedName, p.Desc, p.Author}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if strings.Contains(normalizeStr(candidate), q) {
			return true
		}
		for _, reading := range pinyinTexts(candidate) {
			if strings.Contains(reading, q) {
				return true
			}
		}
		for _, reading := range pinyinInitials(candidate) {
			if strings.Contains(reading, q) {
				return true
			}
		}
	}
	return false
}
