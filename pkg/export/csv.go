package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"
)

// CatalogCSV renders catalog rows into CSV bytes.
type CatalogCSV struct{}

// NewCatalogCSV builds a CSV renderer.
func NewCatalogCSV() *CatalogCSV {
	return &CatalogCSV{}
}

// Render produces CSV encoded bytes for the given books.
func (e *CatalogCSV) Render(books []CatalogBook) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write([]string{"Title", "Author", "Category", "Condition", "Added"}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, b := range books {
		added := ""
		if !b.AddedAt.IsZero() {
			added = b.AddedAt.UTC().Format(time.RFC3339)
		}
		if err := writer.Write([]string{b.Title, b.Author, b.Category, b.Condition, added}); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
