package fetch

import (
	"strings"
)

// techSignatures maps a marker substring in the raw HTML to the
// technology it indicates. Matching is case-insensitive.
var techSignatures = []struct {
	marker string
	name   string
}{
	{"wp-content", "WordPress"},
	{"wp-includes", "WordPress"},
	{"shopify", "Shopify"},
	{"squarespace", "Squarespace"},
	{"wix.com", "Wix"},
	{"hubspot", "HubSpot"},
	{"react", "React"},
	{"angular", "Angular"},
	{"vue", "Vue.js"},
	{"next.js", "Next.js"},
	{"_next/static", "Next.js"},
	{"gatsby", "Gatsby"},
	{"drupal", "Drupal"},
	{"joomla", "Joomla"},
	{"magento", "Magento"},
	{"woocommerce", "WooCommerce"},
	{"cloudflare", "Cloudflare"},
	{"google-analytics", "Google Analytics"},
	{"gtag", "Google Analytics"},
	{"googletagmanager", "Google Tag Manager"},
	{"bootstrap", "Bootstrap"},
	{"tailwind", "Tailwind CSS"},
	{"jquery", "jQuery"},
}

// DetectTechStack scans raw HTML for known platform and framework
// markers and returns the deduplicated technology names in marker
// order.
func DetectTechStack(html string) []string {
	lower := strings.ToLower(html)

	seen := make(map[string]bool)
	var found []string
	for _, sig := range techSignatures {
		if !strings.Contains(lower, sig.marker) {
			continue
		}
		if seen[sig.name] {
			continue
		}
		seen[sig.name] = true
		found = append(found, sig.name)
	}

	return found
}

// CleanText reduces raw HTML to plain text: script, style, and other
// non-content elements are dropped, tags become whitespace, entities
// are decoded, and runs of whitespace collapse to single spaces. The
// result is truncated to maxLen bytes at a rune boundary.
func CleanText(html string, maxLen int) string {
	html = stripElement(html, "script")
	html = stripElement(html, "style")
	html = stripElement(html, "noscript")
	html = stripComments(html)

	var b strings.Builder
	b.Grow(len(html))

	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
			b.WriteByte(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}

	text := decodeEntities(b.String())
	text = collapseWhitespace(text)

	return truncateRunes(text, maxLen)
}

// stripElement removes every <name ...>...</name> block, case
// insensitively. Unclosed blocks are dropped through to the end of the
// document.
func stripElement(html, name string) string {
	lower := strings.ToLower(html)
	open := "<" + name
	close := "</" + name

	var b strings.Builder
	b.Grow(len(html))

	pos := 0
	for {
		start := strings.Index(lower[pos:], open)
		if start < 0 {
			b.WriteString(html[pos:])
			break
		}
		start += pos
		b.WriteString(html[pos:start])

		end := strings.Index(lower[start:], close)
		if end < 0 {
			break
		}
		end += start
		// Skip past the closing tag's '>'.
		gt := strings.IndexByte(lower[end:], '>')
		if gt < 0 {
			break
		}
		pos = end + gt + 1
	}

	return b.String()
}

// stripComments removes <!-- ... --> blocks.
func stripComments(html string) string {
	var b strings.Builder
	b.Grow(len(html))

	pos := 0
	for {
		start := strings.Index(html[pos:], "<!--")
		if start < 0 {
			b.WriteString(html[pos:])
			break
		}
		start += pos
		b.WriteString(html[pos:start])

		end := strings.Index(html[start:], "-->")
		if end < 0 {
			break
		}
		pos = start + end + len("-->")
	}

	return b.String()
}

// entityReplacer covers the entities that actually occur on marketing
// pages; anything rarer survives as-is without hurting extraction.
var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&apos;", "'",
	"&mdash;", "-",
	"&ndash;", "-",
	"&copy;", "(c)",
	"&reg;", "(r)",
	"&trade;", "(tm)",
)

func decodeEntities(text string) string {
	return entityReplacer.Replace(text)
}

// collapseWhitespace folds all whitespace runs into single spaces and
// trims the ends.
func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// truncateRunes cuts text to at most maxLen bytes without splitting a
// rune.
func truncateRunes(text string, maxLen int) string {
	if maxLen <= 0 || len(text) <= maxLen {
		return text
	}
	cut := maxLen
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
