// Package text pulls links out of pasted free text, such as a list of
// open tabs copied from a browser or a chat log.
package text

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/MrSnakeDoc/tabstash/internal/domain"
)

var urlRegex = regexp.MustCompile(`(?i)\b(https?://[^\s<>"']+|(?:[a-z0-9-]+\.)+[a-z]{2,}(?:/[^\s<>"']*)?)`)

// trailing punctuation that usually belongs to the sentence, not the link
const trailingPunct = ".,;:!?)]}>'\""

// Extract returns one item per distinct link found in text, in order of
// first appearance. Bare hosts ("example.com/x") are kept only when their
// suffix is a known public suffix and they do not read like a file name.
func Extract(text string) ([]domain.RawImportItem, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", domain.ErrInvalidInput)
	}

	found := urlRegex.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(found))
	items := make([]domain.RawImportItem, 0, len(found))

	for _, raw := range found {
		link := trimLink(raw)
		if link == "" || !plausible(link) {
			continue
		}
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		items = append(items, domain.RawImportItem{URL: link})
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no link found in text", domain.ErrInvalidInput)
	}
	return items, nil
}

func trimLink(s string) string {
	for s != "" {
		last := s[len(s)-1]
		if !strings.ContainsRune(trailingPunct, rune(last)) {
			break
		}
		// keep a closing paren balanced inside the link (wiki style)
		if last == ')' && strings.Count(s, "(") >= strings.Count(s, ")") {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}

func plausible(link string) bool {
	lower := strings.ToLower(link)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return len(link) > len("https://")
	}

	host, path, _ := strings.Cut(lower, "/")
	suffix, icann := publicsuffix.PublicSuffix(host)
	if !icann || suffix == host {
		return false
	}
	// two-label names without a path look too much like file names
	return path != "" || strings.HasPrefix(host, "www.") || strings.Count(host, ".") >= 2
}
