package services

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"grain-backend/internal/models"
	"grain-backend/templates"
)

// DefaultCompanyName heads every report unless configured otherwise
const DefaultCompanyName = "Sapna Trading Company"

// Row is one "Label: value" line of a report
type Row struct {
	Label     string
	Value     string
	Currency  bool // value is an amount; serializers add the currency sign
	Highlight bool
	Rule      bool // horizontal rule instead of a label/value pair
}

// Section is a group of rows. RuleBefore draws a separator above it, Boxed renders it
// as the shaded calculation panel.
type Section struct {
	Rows       []Row
	RuleBefore bool
	Boxed      bool
	Note       string
}

// Document is a format-neutral report, serialized to HTML or PDF
type Document struct {
	Variant          models.ReportVariant
	Title            string
	Heading          string
	LabelWidth       int
	Sections         []Section
	Kaata            string
	Remark           string
	RemarkBackground string
}

// ReportService builds the three transaction reports
type ReportService struct {
	company    string
	settlement *SettlementService
	tmpl       *template.Template
}

// NewReportService parses the report template from the embedded filesystem
func NewReportService(company string, settlement *SettlementService) *ReportService {
	if strings.TrimSpace(company) == "" {
		company = DefaultCompanyName
	}
	tmpl := template.Must(template.New("report.html.tmpl").Funcs(template.FuncMap{
		"esc":   EscapeHTML,
		"value": htmlValue,
	}).ParseFS(templates.FS, "report.html.tmpl"))

	return &ReportService{
		company:    company,
		settlement: settlement,
		tmpl:       tmpl,
	}
}

// BuildDocument lays out the report for variant. It is pure: the same record always
// yields the same document.
func (s *ReportService) BuildDocument(variant models.ReportVariant, rec models.TransactionRecord) (Document, error) {
	switch variant {
	case models.VariantOffice:
		return s.officeDocument(rec), nil
	case models.VariantUnloaderCopy:
		return s.unloaderCopyDocument(rec), nil
	case models.VariantUnloaderSlip:
		return s.unloaderSlipDocument(rec), nil
	}
	return Document{}, fmt.Errorf("%w: %q", models.ErrUnknownVariant, variant)
}

func (s *ReportService) officeDocument(rec models.TransactionRecord) Document {
	res := s.settlement.Calculate(rec)

	advance := "No"
	if rec.AdvancePayment {
		advance = "Yes"
	}

	bhartiLabel, hammaliLabel, totalLabel := "Bharti (info only)", "Hammali / per qtl", "Total Rough Cost (with Hammali)"
	if res.Formula == models.FormulaFlat {
		bhartiLabel, hammaliLabel, totalLabel = "Bharti", "Hammali", "Total Rough Cost (less Bharti & Hammali)"
	}

	return Document{
		Variant:    models.VariantOffice,
		Title:      "Office Copy",
		Heading:    s.company + " — Purchase Report (Office)",
		LabelWidth: 220,
		Sections: []Section{
			{Rows: []Row{
				{Label: "Purchaser", Value: rec.PurchaserName},
				{Label: "Date (DD/MM/YY)", Value: rec.Date},
				{Label: "Village Name", Value: rec.VillageName},
				{Label: "Kisan Name", Value: rec.KisanName},
			}},
			{RuleBefore: true, Rows: []Row{
				{Label: "Advance Payment", Value: advance},
				{Label: "Advance Payment Mode", Value: rec.AdvancePaymentMode},
				{Label: "Advance Amount", Value: FormatAmount(rec.AdvanceAmount.Float()), Currency: true},
				{Label: "Amount on Hold", Value: FormatAmount(rec.AmountOnHold.Float()), Currency: true},
			}},
			{RuleBefore: true, Rows: []Row{
				{Label: "Variety", Value: rec.Variety},
				{Label: "Bags", Value: rec.Bags.String()},
				{Label: bhartiLabel, Value: rec.Bharti.String()},
				{Label: "Rate / per qtl", Value: FormatAmount(rec.Rate.Float()), Currency: true},
				{Label: "Vehicle No", Value: rec.VehicleNo},
			}},
			{RuleBefore: true, Rows: []Row{
				{Label: "Kisan Bank Name", Value: rec.KisanBankName},
				{Label: hammaliLabel, Value: FormatAmount(rec.Hammali.Float()), Currency: true},
			}},
			{Boxed: true, Note: "* Rough estimates for internal reference", Rows: []Row{
				{Label: "Quantity (qtl)", Value: FormatAmount(res.Quantity), Highlight: true},
				{Label: "Rough Crop Cost", Value: FormatAmount(res.RoughCost), Currency: true, Highlight: true},
				{Label: totalLabel, Value: FormatAmount(res.TotalRoughCost), Currency: true, Highlight: true},
				{Rule: true},
				{Label: "Estimate (without amount on hold)", Value: FormatAmount(res.EstimateWithoutHold), Currency: true, Highlight: true},
				{Label: "Estimate (after amount on hold)", Value: FormatAmount(res.EstimateAfterHold), Currency: true, Highlight: true},
				{Label: "Balance (after advance & hold)", Value: FormatAmount(res.BalanceAfterAdvance), Currency: true, Highlight: true},
			}},
		},
		Remark:           rec.PurchaserRemark,
		RemarkBackground: "#fff9e6",
	}
}

func (s *ReportService) unloaderCopyDocument(rec models.TransactionRecord) Document {
	return Document{
		Variant:    models.VariantUnloaderCopy,
		Title:      "Unloader Copy",
		Heading:    s.company + " — Unloader Report",
		LabelWidth: 180,
		Sections: []Section{
			{Rows: []Row{
				{Label: "Purchaser Name", Value: rec.PurchaserName},
				{Label: "Date (DD/MM/YY)", Value: rec.Date},
				{Label: "Village Name", Value: rec.VillageName},
				{Label: "Kisan Name", Value: rec.KisanName},
				{Label: "Variety", Value: rec.Variety},
				{Label: "Bags", Value: rec.Bags.String()},
				{Label: "Bharti", Value: rec.Bharti.String()},
				{Label: "Vehicle No", Value: rec.VehicleNo},
			}},
		},
		Remark:           rec.PurchaserRemark,
		RemarkBackground: "#f0f8ff",
	}
}

func (s *ReportService) unloaderSlipDocument(rec models.TransactionRecord) Document {
	return Document{
		Variant:    models.VariantUnloaderSlip,
		Title:      "Unloader Slip",
		Heading:    s.company + " — Unloader Report",
		LabelWidth: 180,
		Sections: []Section{
			{Rows: []Row{
				{Label: "Unloader Name", Value: rec.UnloaderName},
				{Label: "Date (DD/MM/YY)", Value: rec.Date},
				{Label: "Village Name", Value: rec.VillageName},
				{Label: "Kisan Name", Value: rec.KisanName},
				{Label: "Variety", Value: rec.Variety},
				{Label: "Bags", Value: rec.Bags.String()},
				{Label: "Bharti", Value: rec.Bharti.String()},
				{Label: "Vehicle No", Value: rec.VehicleNo},
			}},
		},
		Kaata:            fmt.Sprintf("Kaata Weight: %s kg", rec.KaataWeight.String()),
		Remark:           rec.UnloaderRemark,
		RemarkBackground: "#fff",
	}
}

// RenderHTML serializes doc as a self-contained HTML page
func (s *ReportService) RenderHTML(doc Document) ([]byte, error) {
	return s.render(doc, false)
}

// RenderPrintHTML is RenderHTML plus an onload print call, used when PDF export fails
func (s *ReportService) RenderPrintHTML(doc Document) ([]byte, error) {
	return s.render(doc, true)
}

func (s *ReportService) render(doc Document, autoPrint bool) ([]byte, error) {
	var buf bytes.Buffer
	data := struct {
		Document
		AutoPrint bool
	}{doc, autoPrint}

	if err := s.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s report: %w", doc.Variant, err)
	}
	return buf.Bytes(), nil
}

func htmlValue(r Row) string {
	if r.Currency {
		return "₹" + EscapeHTML(r.Value)
	}
	return EscapeHTML(r.Value)
}

// Lines flattens doc to plain text, one row per line. Amounts use "Rs." so the text
// survives printers and fonts without the rupee glyph.
func (d Document) Lines() []string {
	lines := []string{d.Heading}
	for _, sec := range d.Sections {
		if sec.RuleBefore {
			lines = append(lines, strings.Repeat("-", 32))
		}
		for _, r := range sec.Rows {
			if r.Rule {
				lines = append(lines, strings.Repeat("-", 32))
				continue
			}
			lines = append(lines, r.Label+": "+plainValue(r))
		}
		if sec.Note != "" {
			lines = append(lines, sec.Note)
		}
	}
	if d.Kaata != "" {
		lines = append(lines, d.Kaata)
	}
	lines = append(lines, "Remark: "+d.Remark)
	return lines
}

func plainValue(r Row) string {
	if r.Currency {
		return "Rs. " + r.Value
	}
	return r.Value
}

var filenamePrefixes = map[models.ReportVariant]string{
	models.VariantOffice:       "office",
	models.VariantUnloaderCopy: "unloader",
	models.VariantUnloaderSlip: "unloader_slip",
}

// Filename suggests a download name such as office_27-12-25.pdf, falling back to
// "report" when the date is blank.
func Filename(variant models.ReportVariant, date, ext string) string {
	prefix, ok := filenamePrefixes[variant]
	if !ok {
		prefix = "document"
	}
	stamp := sanitizeFilePart(date)
	if stamp == "" {
		stamp = "report"
	}
	return fmt.Sprintf("%s_%s.%s", prefix, stamp, ext)
}

// sanitizeFilePart keeps the date readable while making it safe for a
// Content-Disposition header and a filesystem
func sanitizeFilePart(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r == '/', r == '\\', r == ' ':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), ".")
}
