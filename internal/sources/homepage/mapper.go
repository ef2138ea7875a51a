package homepage

import (
	"sort"
	"strings"

	"github.com/MrSnakeDoc/tabstash/internal/domain"
)

// MapBookmarks converts bookmarks in document order. The bookmark name
// becomes the title. Entries without href are skipped.
func MapBookmarks(config BookmarksConfig) []domain.RawImportItem {
	items := make([]domain.RawImportItem, 0)

	for _, category := range config {
		for _, categoryName := range sortedKeys(category) {
			for _, bookmarkMap := range category[categoryName] {
				for _, name := range sortedKeys(bookmarkMap) {
					entries := bookmarkMap[name]
					// Each bookmark has a list with a single entry
					if len(entries) == 0 {
						continue
					}
					href := strings.TrimSpace(entries[0].Href)
					if href == "" {
						continue
					}
					items = append(items, domain.RawImportItem{URL: href, Title: strings.TrimSpace(name)})
				}
			}
		}
	}

	return items
}

// MapServices converts services in document order. The service name
// becomes the title.
func MapServices(config ServicesConfig) []domain.RawImportItem {
	items := make([]domain.RawImportItem, 0)

	for _, groupMap := range config {
		for _, groupName := range sortedKeys(groupMap) {
			for _, serviceMap := range groupMap[groupName] {
				for _, name := range sortedKeys(serviceMap) {
					href := strings.TrimSpace(serviceMap[name].Href)
					if href == "" {
						continue
					}
					items = append(items, domain.RawImportItem{URL: href, Title: strings.TrimSpace(name)})
				}
			}
		}
	}

	return items
}

// sortedKeys gives a stable order for YAML maps with more than one key.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
