package export

import (
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// UncategorizedLabel is the group name used for books without a category.
const UncategorizedLabel = "Uncategorized"

// CatalogBook is the row shape rendered into catalog exports.
type CatalogBook struct {
	Title     string
	Author    string
	Category  string
	Condition string
	AddedAt   time.Time
}

// BookGroup is a partition of books sharing a normalized category label.
type BookGroup struct {
	Name  string
	Books []CatalogBook
}

// GroupByCategory partitions books by trimmed category, labelling blanks as
// Uncategorized, and returns groups ordered case-insensitively by name using
// locale-aware collation.
func GroupByCategory(books []CatalogBook) []BookGroup {
	grouped := make(map[string][]CatalogBook)
	for _, b := range books {
		key := strings.TrimSpace(b.Category)
		if key == "" {
			key = UncategorizedLabel
		}
		grouped[key] = append(grouped[key], b)
	}

	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	collate.New(language.Und, collate.IgnoreCase).SortStrings(names)

	groups := make([]BookGroup, 0, len(names))
	for _, name := range names {
		groups = append(groups, BookGroup{Name: name, Books: grouped[name]})
	}
	return groups
}
