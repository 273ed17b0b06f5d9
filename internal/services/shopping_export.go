package services

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
)

// Shopping list export formats
const (
	ExportText = "txt"
	ExportPDF  = "pdf"
	ExportJSON = "json"
)

// ShoppingLine formats one item as "<name> (<unit>) — <amount>"
func ShoppingLine(item ShoppingItem) string {
	return fmt.Sprintf("%s (%s) — %d", item.Name, item.MeasurementUnit, item.Amount)
}

// RenderShoppingListText renders one line per item
func RenderShoppingListText(items []ShoppingItem) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString(ShoppingLine(item))
		b.WriteByte('\n')
	}
	return b.String()
}

// PDFOptions tunes the PDF export
type PDFOptions struct {
	// FontPath is a UTF-8 TrueType font. Without it the core Helvetica font is used,
	// which only covers the cp1252 character set.
	FontPath string
	Title    string
}

// RenderShoppingListPDF writes an A4 document with the title followed by one line per item
func RenderShoppingListPDF(w io.Writer, items []ShoppingItem, opts PDFOptions) error {
	title := opts.Title
	if title == "" {
		title = "Shopping list"
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	family := "Helvetica"
	translate := pdf.UnicodeTranslatorFromDescriptor("")
	if opts.FontPath != "" {
		family = "body"
		pdf.AddUTF8Font(family, "", opts.FontPath)
		translate = func(s string) string { return s }
	}

	pdf.SetTitle(title, true)
	pdf.AddPage()
	pdf.SetFont(family, "", 18)
	pdf.CellFormat(0, 12, translate(title), "B", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont(family, "", 12)
	if len(items) == 0 {
		pdf.CellFormat(0, 8, translate("The shopping cart is empty."), "", 1, "L", false, 0, "")
	}
	for _, item := range items {
		pdf.CellFormat(0, 8, translate(ShoppingLine(item)), "", 1, "L", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render shopping list pdf: %w", err)
	}
	return nil
}
