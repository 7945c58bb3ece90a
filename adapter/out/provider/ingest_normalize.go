// Package provider implements mail provider adapters.
package provider

import (
	"html"
	"net/mail"
	"regexp"
	"strings"
)

// =============================================================================
// Shared Normalization Helpers
// =============================================================================

var (
	reScriptBlock = regexp.MustCompile(`(?is)<script.*?</script>`)
	reStyleBlock  = regexp.MustCompile(`(?is)<style.*?</style>`)
	reHeadBlock   = regexp.MustCompile(`(?is)<head.*?</head>`)
	reHTMLTag     = regexp.MustCompile(`(?s)<[^>]*>`)
	reWhitespace  = regexp.MustCompile(`[ \t\r\f]+`)
	reBlankLines  = regexp.MustCompile(`\n{3,}`)
)

// stripHTML reduces an HTML body to readable plain text: script/style/head
// blocks removed, tags stripped, entities decoded, whitespace collapsed.
func stripHTML(htmlBody string) string {
	if htmlBody == "" {
		return ""
	}

	text := reScriptBlock.ReplaceAllString(htmlBody, "")
	text = reStyleBlock.ReplaceAllString(text, "")
	text = reHeadBlock.ReplaceAllString(text, "")

	// Block-level closings become line breaks before tags are dropped.
	for _, tag := range []string{"</p>", "</div>", "</tr>", "</li>", "<br>", "<br/>", "<br />"} {
		text = strings.ReplaceAll(text, tag, "\n")
	}

	text = reHTMLTag.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = reWhitespace.ReplaceAllString(text, " ")
	text = reBlankLines.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	cleaned := lines[:0]
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return strings.Join(cleaned, "\n")
}

// splitAddressList splits a header-style address list on commas and
// semicolons, dropping blank entries. Display-name forms reduce to the bare
// address.
func splitAddressList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})

	addresses := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		addresses = append(addresses, extractAddress(part))
	}
	if len(addresses) == 0 {
		return nil
	}
	return addresses
}

// extractAddress pulls the addr-spec out of "Name <addr>" forms, keeping
// the raw value when it does not parse as an RFC 5322 address.
func extractAddress(raw string) string {
	if parsed, err := mail.ParseAddress(raw); err == nil {
		return parsed.Address
	}
	return raw
}
