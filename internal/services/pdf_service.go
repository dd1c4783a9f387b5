package services

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf/v2"
	"golang.org/x/text/encoding/charmap"
)

// ErrUnsupportedText means the document holds characters the PDF core fonts cannot
// draw, e.g. Devanagari names. The export falls back to the print page instead.
var ErrUnsupportedText = errors.New("text not representable in the pdf core fonts")

// PDFRenderer turns a report document into PDF bytes
type PDFRenderer interface {
	Render(doc Document) ([]byte, error)
}

// PDFService renders report documents on A4 portrait pages with the core fonts
type PDFService struct{}

func NewPDFService() *PDFService {
	return &PDFService{}
}

const (
	pageWidth  = 190.0 // A4 minus 10mm margins
	labelWidth = 80.0
	rowHeight  = 7.0
)

// Render lays doc out the same way the HTML copy does
func (s *PDFService) Render(doc Document) ([]byte, error) {
	if err := checkEncodable(doc); err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.SetTitle(doc.Title, true)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// Header
	pdf.SetFont("Arial", "B", 16)
	pdf.MultiCell(pageWidth, 9, tr(pdfText(doc.Heading)), "", "L", false)
	pdf.Ln(3)

	for _, sec := range doc.Sections {
		if sec.RuleBefore {
			rule(pdf)
		}
		fill := sec.Boxed
		if fill {
			pdf.SetFillColor(249, 249, 249)
			pdf.Ln(2)
		}
		for _, r := range sec.Rows {
			if r.Rule {
				rule(pdf)
				continue
			}
			pdf.SetFont("Arial", "B", 11)
			pdf.CellFormat(labelWidth, rowHeight, tr(r.Label+":"), "", 0, "L", fill, 0, "")
			style := ""
			if r.Highlight {
				style = "B"
			}
			pdf.SetFont("Arial", style, 11)
			pdf.MultiCell(pageWidth-labelWidth, rowHeight, tr(plainValue(r)), "", "L", fill)
		}
		if sec.Note != "" {
			pdf.SetFont("Arial", "", 9)
			pdf.SetTextColor(68, 68, 68)
			pdf.CellFormat(pageWidth, 6, tr(sec.Note), "", 1, "L", fill, 0, "")
			pdf.SetTextColor(17, 17, 17)
		}
	}

	if doc.Kaata != "" {
		pdf.Ln(4)
		pdf.SetFillColor(255, 249, 230)
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(pageWidth, 10, tr(doc.Kaata), "1", 1, "L", true, 0, "")
	}

	// Remark
	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(pageWidth, 8, "Remark", "", 1, "L", false, 0, "")
	r, g, b := hexRGB(doc.RemarkBackground)
	pdf.SetFillColor(r, g, b)
	pdf.SetFont("Arial", "", 11)
	pdf.MultiCell(pageWidth, 6, tr(doc.Remark), "1", "L", true)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// checkEncodable rejects text outside cp1252, which the translator would silently mangle
func checkEncodable(doc Document) error {
	enc := charmap.Windows1252.NewEncoder()
	for _, text := range doc.texts() {
		if _, err := enc.String(pdfText(text)); err != nil {
			return fmt.Errorf("%w: %q", ErrUnsupportedText, text)
		}
	}
	return nil
}

// texts lists every string the PDF draws
func (d Document) texts() []string {
	out := []string{d.Title, d.Heading, d.Kaata, d.Remark}
	for _, sec := range d.Sections {
		out = append(out, sec.Note)
		for _, r := range sec.Rows {
			out = append(out, r.Label, r.Value)
		}
	}
	return out
}

func rule(pdf *gofpdf.Fpdf) {
	pdf.Ln(2)
	y := pdf.GetY()
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(10, y, 10+pageWidth, y)
	pdf.SetDrawColor(0, 0, 0)
	pdf.Ln(3)
}

// pdfText swaps characters the core fonts cannot draw
func pdfText(s string) string {
	return strings.NewReplacer("₹", "Rs. ").Replace(s)
}

// hexRGB parses #rgb or #rrggbb, defaulting to white
func hexRGB(hex string) (int, int, int) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return 255, 255, 255
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 255, 255, 255
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}
