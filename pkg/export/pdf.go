package export

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Page layout in millimetres (A4 portrait).
const (
	marginLeft     = 14.0
	headerTitleY   = 16.0
	headerStampY   = 22.0
	contentStartY  = 28.0
	topMarginY     = 16.0
	groupBreakY    = 270.0
	contentBottomY = 280.0
	footerOffsetY  = 10.0
	groupGap       = 10.0
	labelGap       = 4.0
	lineHeight     = 5.0
	cellPadding    = 1.5
	headerRowH     = 7.0
)

var columnWidths = [4]float64{10, 85, 55, 30}

var columnHeaders = [4]string{"#", "Title", "Author", "Condition"}

// CatalogPDF renders a filtered catalog into a grouped, paginated PDF.
// Books are partitioned by category, each group rendered as a titled table;
// footers are stamped in a second pass once the total page count is known.
type CatalogPDF struct {
	// Title is the document header printed on the first page.
	Title string

	// Now supplies the generation timestamp; defaults to time.Now.
	Now func() time.Time

	// DisableCompression emits uncompressed content streams so tests can
	// assert on the rendered text.
	DisableCompression bool
}

// NewCatalogPDF constructs a catalog PDF renderer with the given header title.
func NewCatalogPDF(title string) *CatalogPDF {
	return &CatalogPDF{Title: title}
}

// Render produces the PDF document bytes for the given books. An empty input
// yields a valid single-page document containing only the header.
func (e *CatalogPDF) Render(books []CatalogBook) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	if e.DisableCompression {
		pdf.SetCompression(false)
	}
	// The vertical cursor is managed explicitly; gofpdf must not break pages.
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Text(marginLeft, headerTitleY, e.Title)
	pdf.SetFont("Arial", "", 10)
	pdf.Text(marginLeft, headerStampY, "Printed: "+e.now().Format("2006-01-02 15:04:05"))

	y := contentStartY
	for i, group := range GroupByCategory(books) {
		if i > 0 && y > groupBreakY {
			pdf.AddPage()
			y = topMarginY
		}
		pdf.SetFont("Arial", "B", 12)
		pdf.Text(marginLeft, y, group.Name)
		y += labelGap
		y = e.renderTable(pdf, group.Books, y)
		y += groupGap
	}

	e.stampFooters(pdf)

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render catalog pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// renderTable draws the group table starting at y and returns the cursor
// position below it. Rows that would cross the page bottom force a page break
// with the column header redrawn, so an oversized group paginates internally.
func (e *CatalogPDF) renderTable(pdf *gofpdf.Fpdf, books []CatalogBook, y float64) float64 {
	y = e.renderTableHeader(pdf, y)

	for i, b := range books {
		cells := [4]string{strconv.Itoa(i + 1), b.Title, b.Author, b.Condition}

		lines := [4][]string{}
		maxLines := 1
		for col, text := range cells {
			split := pdf.SplitText(text, columnWidths[col]-2*cellPadding)
			if len(split) == 0 {
				split = []string{""}
			}
			lines[col] = split
			if len(split) > maxLines {
				maxLines = len(split)
			}
		}
		rowH := float64(maxLines)*lineHeight + 2*cellPadding

		if y+rowH > contentBottomY {
			pdf.AddPage()
			y = e.renderTableHeader(pdf, topMarginY)
		}

		x := marginLeft
		for col := range cells {
			pdf.Rect(x, y, columnWidths[col], rowH, "D")
			textY := y + cellPadding + lineHeight*0.75
			for _, line := range lines[col] {
				pdf.Text(x+cellPadding, textY, line)
				textY += lineHeight
			}
			x += columnWidths[col]
		}
		y += rowH
	}

	return y
}

func (e *CatalogPDF) renderTableHeader(pdf *gofpdf.Fpdf, y float64) float64 {
	pdf.SetFont("Arial", "B", 10)
	x := marginLeft
	for col, header := range columnHeaders {
		pdf.Rect(x, y, columnWidths[col], headerRowH, "D")
		pdf.Text(x+cellPadding, y+headerRowH-2, header)
		x += columnWidths[col]
	}
	pdf.SetFont("Arial", "", 10)
	return y + headerRowH
}

// stampFooters is the second pass: the total is unknown until all content has
// been laid out, so every page is revisited to write "Page p / total".
func (e *CatalogPDF) stampFooters(pdf *gofpdf.Fpdf) {
	total := pdf.PageCount()
	pageW, pageH := pdf.GetPageSize()
	pdf.SetFont("Arial", "", 9)
	for p := 1; p <= total; p++ {
		pdf.SetPage(p)
		footer := fmt.Sprintf("Page %d / %d", p, total)
		pdf.Text(pageW-marginLeft-pdf.GetStringWidth(footer), pageH-footerOffsetY, footer)
	}
}

func (e *CatalogPDF) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}
