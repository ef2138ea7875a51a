package homepage

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/tabstash/internal/domain"
)

// ErrNoEntries is returned when a document holds no entry with an href.
var ErrNoEntries = errors.New("no linked entries found")

var templateVar = regexp.MustCompile(`\{\{[^}]+\}\}`)

// Loader handles loading of a Homepage YAML export
type Loader struct {
	filePath string
}

// NewLoader creates a new Homepage loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Path returns the file the loader reads.
func (l *Loader) Path() string {
	return l.filePath
}

// Read returns the raw file content
func (l *Loader) Read() ([]byte, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read homepage file: %w", err)
	}
	return data, nil
}

// Load reads the file and parses it into import items
func (l *Loader) Load() ([]domain.RawImportItem, error) {
	data, err := l.Read()
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse accepts either a bookmarks.yaml or a services.yaml document.
func Parse(data []byte) ([]domain.RawImportItem, error) {
	// Strip Homepage template variables ({{HOMEPAGE_VAR_...}})
	data = stripTemplateVariables(data)

	var bookmarks BookmarksConfig
	bookmarksErr := yaml.Unmarshal(data, &bookmarks)
	if bookmarksErr == nil {
		if items := MapBookmarks(bookmarks); len(items) > 0 {
			return items, nil
		}
	}

	var services ServicesConfig
	servicesErr := yaml.Unmarshal(data, &services)
	if servicesErr == nil {
		if items := MapServices(services); len(items) > 0 {
			return items, nil
		}
	}

	if bookmarksErr != nil && servicesErr != nil {
		return nil, fmt.Errorf("failed to parse homepage yaml: %w", errors.Join(bookmarksErr, servicesErr))
	}
	return nil, ErrNoEntries
}

// stripTemplateVariables removes Homepage template variables from YAML
// Example: {{HOMEPAGE_VAR_ADGUARD_USER}} -> ""
func stripTemplateVariables(data []byte) []byte {
	return templateVar.ReplaceAll(data, []byte(`""`))
}
