package export

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
}

func renderUncompressed(t *testing.T, books []CatalogBook) string {
	t.Helper()
	gen := NewCatalogPDF("Al-Maktaba Books Catalog")
	gen.Now = fixedNow
	gen.DisableCompression = true
	payload, err := gen.Render(books)
	require.NoError(t, err)
	require.NotEmpty(t, payload)
	return string(payload)
}

func TestGroupByCategoryOrdering(t *testing.T) {
	books := []CatalogBook{
		{Title: "A", Category: "history"},
		{Title: "B", Category: "Fiqh"},
		{Title: "C", Category: "hadith"},
	}
	groups := GroupByCategory(books)
	require.Len(t, groups, 3)
	assert.Equal(t, "Fiqh", groups[0].Name)
	assert.Equal(t, "hadith", groups[1].Name)
	assert.Equal(t, "history", groups[2].Name)
}

func TestGroupByCategoryBlankIsUncategorized(t *testing.T) {
	books := []CatalogBook{
		{Title: "A", Category: "  "},
		{Title: "B", Category: ""},
		{Title: "C", Category: " Fiqh "},
	}
	groups := GroupByCategory(books)
	require.Len(t, groups, 2)
	assert.Equal(t, "Fiqh", groups[0].Name)
	assert.Equal(t, UncategorizedLabel, groups[1].Name)
	assert.Len(t, groups[1].Books, 2)
}

func TestCatalogPDFEmptyInput(t *testing.T) {
	doc := renderUncompressed(t, nil)
	assert.Contains(t, doc, "/Count 1")
	assert.Contains(t, doc, "Al-Maktaba Books Catalog")
	assert.Contains(t, doc, "Printed: 2026-03-01 09:30:00")
	assert.Contains(t, doc, "Page 1 / 1")
	assert.NotContains(t, doc, UncategorizedLabel)
}

func TestCatalogPDFSinglePage(t *testing.T) {
	books := []CatalogBook{
		{Title: "Sahih al-Bukhari", Author: "al-Bukhari", Category: "hadith", Condition: "good"},
		{Title: "Riyad as-Salihin", Author: "an-Nawawi", Category: "hadith", Condition: "new"},
	}
	doc := renderUncompressed(t, books)
	assert.Contains(t, doc, "/Count 1")
	assert.Contains(t, doc, "Sahih al-Bukhari")
	assert.Contains(t, doc, "Page 1 / 1")
}

// A first group tall enough to push the cursor past the group threshold, but
// short enough to fit on one page, must move the entire second group to a
// fresh page rather than splitting it.
func TestCatalogPDFGroupPushedToSecondPage(t *testing.T) {
	books := make([]CatalogBook, 0, 29)
	for i := 0; i < 28; i++ {
		books = append(books, CatalogBook{
			Title:     fmt.Sprintf("History Volume %d", i+1),
			Author:    "Ibn Khaldun",
			Category:  "history",
			Condition: "good",
		})
	}
	books = append(books, CatalogBook{
		Title:     "Diwan al-Mutanabbi",
		Author:    "al-Mutanabbi",
		Category:  "poetry",
		Condition: "worn",
	})

	doc := renderUncompressed(t, books)
	assert.Contains(t, doc, "/Count 2")
	assert.Contains(t, doc, "Page 1 / 2")
	assert.Contains(t, doc, "Page 2 / 2")
	assert.Contains(t, doc, "poetry")
}

// A single group taller than one page paginates internally per-row.
func TestCatalogPDFOversizedGroupBreaksInternally(t *testing.T) {
	books := make([]CatalogBook, 0, 80)
	for i := 0; i < 80; i++ {
		books = append(books, CatalogBook{
			Title:     fmt.Sprintf("Fiqh Treatise %d", i+1),
			Category:  "Fiqh",
			Condition: "good",
		})
	}
	doc := renderUncompressed(t, books)
	assert.Contains(t, doc, "/Count 3")
	assert.Contains(t, doc, "Page 3 / 3")
	// Every row must survive pagination.
	assert.Contains(t, doc, "Fiqh Treatise 80")
}

func TestCatalogPDFWrapsLongTitles(t *testing.T) {
	long := strings.Repeat("Kitab al-Ibar wa-Diwan al-Mubtada wa-l-Khabar ", 3)
	doc := renderUncompressed(t, []CatalogBook{{Title: long, Category: "history"}})
	// Wrapped, never truncated: the tail of the title is still present.
	assert.Contains(t, doc, "al-Khabar")
	assert.Contains(t, doc, "Page 1 / 1")
}

func TestCatalogCSVRender(t *testing.T) {
	renderer := NewCatalogCSV()
	payload, err := renderer.Render([]CatalogBook{
		{Title: "Muqaddimah", Author: "Ibn Khaldun", Category: "history", Condition: "good", AddedAt: fixedNow()},
		{Title: "Untitled Notes"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Title,Author,Category,Condition,Added", lines[0])
	assert.Equal(t, "Muqaddimah,Ibn Khaldun,history,good,2026-03-01T09:30:00Z", lines[1])
	assert.Equal(t, "Untitled Notes,,,,", lines[2])
}
