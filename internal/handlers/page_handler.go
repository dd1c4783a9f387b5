package handlers

import (
	"html/template"
	"net/http"

	"grain-backend/internal/models"
	"grain-backend/internal/services"
	"grain-backend/templates"
)

// PageData is passed to the entry pages
type PageData struct {
	Company  string
	Mode     models.Mode
	Variants []models.ReportVariant
	Formula  models.Formula
}

type PageHandler struct {
	templates *template.Template
	company   string
	formula   models.Formula
}

func NewPageHandler(company string, formula models.Formula) *PageHandler {
	// Parse all templates from embedded filesystem
	templates := template.Must(template.ParseFS(templates.FS, "*.html"))

	if company == "" {
		company = services.DefaultCompanyName
	}
	return &PageHandler{
		templates: templates,
		company:   company,
		formula:   formula,
	}
}

func (h *PageHandler) data(mode models.Mode) PageData {
	return PageData{
		Company:  h.company,
		Mode:     mode,
		Variants: models.VariantsFor(mode),
		Formula:  h.formula,
	}
}

// HomePage serves the mode selection screen
func (h *PageHandler) HomePage(w http.ResponseWriter, r *http.Request) {
	h.templates.ExecuteTemplate(w, "home.html", h.data(models.ModeHome))
}

// PurchaserPage serves the purchaser entry form
func (h *PageHandler) PurchaserPage(w http.ResponseWriter, r *http.Request) {
	h.templates.ExecuteTemplate(w, "purchaser.html", h.data(models.ModePurchaser))
}

// UnloaderPage serves the unloader entry form
func (h *PageHandler) UnloaderPage(w http.ResponseWriter, r *http.Request) {
	h.templates.ExecuteTemplate(w, "unloader.html", h.data(models.ModeUnloader))
}
