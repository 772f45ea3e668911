// Package curriculum holds the per-domain task lists seeded into every new
// internship.
package curriculum

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"futureintern/internship-app/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed tasks.yaml
var embeddedTasks []byte

// Item is one curriculum entry.
type Item struct {
	Title       string `yaml:"task"`
	Description string `yaml:"description"`
}

// Catalog maps a domain name to its ordered task list.
type Catalog map[string][]Item

var fallbackTitles = [domain.TotalTasks]string{
	"Fundamentals",
	"Intermediate Project",
	"Advanced Implementation",
	"Portfolio Project",
	"Final Assessment",
}

// Load reads the catalog from path, or from the embedded table when path is
// empty.
func Load(path string) (Catalog, error) {
	data := embeddedTasks
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read curriculum %s: %w", path, err)
		}
		data = b
	}
	return Parse(data)
}

// Parse decodes a YAML catalog.
func Parse(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode curriculum: %w", err)
	}
	for name := range c {
		if !domain.IsValidDomain(name) {
			return nil, fmt.Errorf("curriculum: unknown domain %q", name)
		}
	}
	return c, nil
}

// TasksFor returns exactly domain.TotalTasks items for the domain. Missing
// entries are filled with generic placeholder titles.
func (c Catalog) TasksFor(domainName string) []Item {
	items := make([]Item, domain.TotalTasks)
	known := c[domainName]
	for i := range items {
		if i < len(known) && strings.TrimSpace(known[i].Title) != "" {
			items[i] = known[i]
			continue
		}
		title := fmt.Sprintf("Task %d: %s %s", i+1, domainName, fallbackTitles[i])
		items[i] = Item{
			Title:       title,
			Description: fmt.Sprintf("Complete the %s and submit your work.", strings.ToLower(title)),
		}
	}
	return items
}
