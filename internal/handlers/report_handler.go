package handlers

import (
	"net/http"

	"grain-backend/internal/services"
	"grain-backend/pkg/utils"

	"github.com/google/uuid"
)

// exportClientCookie identifies one browser for the stateless export guard
const exportClientCookie = "export_client"

// ReportHandler serves stateless settlement and report requests. The browser
// keeps the record and posts it whole.
type ReportHandler struct {
	settlement *services.SettlementService
	reports    *services.ReportService
	export     *services.ExportService
}

func NewReportHandler(settlement *services.SettlementService, reports *services.ReportService, export *services.ExportService) *ReportHandler {
	return &ReportHandler{settlement: settlement, reports: reports, export: export}
}

// Settlement handles POST /api/settlement
func (h *ReportHandler) Settlement(w http.ResponseWriter, r *http.Request) {
	rec, err := decodeRecord(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, h.settlement.Respond(rec))
}

// ReportHTML handles POST /api/reports/{variant}/html
func (h *ReportHandler) ReportHTML(w http.ResponseWriter, r *http.Request) {
	variant, err := variantFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := decodeRecord(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	doc, err := h.reports.BuildDocument(variant, rec)
	if err != nil {
		writeError(w, err)
		return
	}
	html, err := h.reports.RenderHTML(doc)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(html)
}

// ReportPDF handles POST /api/reports/{variant}/pdf. Concurrent exports from the
// same browser are rejected while one is running.
func (h *ReportHandler) ReportPDF(w http.ResponseWriter, r *http.Request) {
	variant, err := variantFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := decodeRecord(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.export.Export(r.Context(), exportClientKey(w, r), variant, rec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeExport(w, res)
}

// exportClientKey keys the in-flight guard per browser, so operators sharing an
// office IP do not block each other. A browser without the cookie gets a fresh one.
func exportClientKey(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(exportClientCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return "client:" + id.String()
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     exportClientCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return "client:" + id
}
