package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"grain-backend/internal/models"
	"grain-backend/internal/services"
	"grain-backend/pkg/apperror"
	"grain-backend/pkg/utils"

	"github.com/gorilla/mux"
)

// SessionView is a session with its live settlement and the reports its mode offers
type SessionView struct {
	Session    models.FormSession        `json:"session"`
	Settlement models.SettlementResponse `json:"settlement"`
	Variants   []models.ReportVariant    `json:"variants"`
}

type FormHandler struct {
	forms      *services.FormService
	settlement *services.SettlementService
	reports    *services.ReportService
	export     *services.ExportService
	printer    *services.PrinterService
}

func NewFormHandler(forms *services.FormService, settlement *services.SettlementService, reports *services.ReportService, export *services.ExportService, printer *services.PrinterService) *FormHandler {
	return &FormHandler{
		forms:      forms,
		settlement: settlement,
		reports:    reports,
		export:     export,
		printer:    printer,
	}
}

func (h *FormHandler) view(sess models.FormSession) SessionView {
	variants := models.VariantsFor(sess.Mode)
	if variants == nil {
		variants = []models.ReportVariant{}
	}
	return SessionView{
		Session:    sess,
		Settlement: h.settlement.Respond(sess.Record),
		Variants:   variants,
	}
}

// Create handles POST /api/sessions
func (h *FormHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess := h.forms.Create()
	utils.JSON(w, http.StatusCreated, h.view(sess))
}

// Get handles GET /api/sessions/{id}
func (h *FormHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.forms.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, h.view(sess))
}

// Navigate handles PUT /api/sessions/{id}/mode
func (h *FormHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req models.NavigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.NewBadRequestError("Invalid request body"))
		return
	}
	mode, ok := models.ParseMode(req.Mode)
	if !ok {
		writeError(w, apperror.NewValidationError([]apperror.FieldError{
			{Field: "mode", Message: "must be one of home, purchaser, unloader"},
		}))
		return
	}

	sess, err := h.forms.Navigate(mux.Vars(r)["id"], mode)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, h.view(sess))
}

// UpdateFields handles PATCH /api/sessions/{id}/fields
func (h *FormHandler) UpdateFields(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateFieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.NewBadRequestError("Invalid request body"))
		return
	}

	sess, err := h.forms.Apply(mux.Vars(r)["id"], req.Updates)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, h.view(sess))
}

// Discard handles DELETE /api/sessions/{id}
func (h *FormHandler) Discard(w http.ResponseWriter, r *http.Request) {
	if err := h.forms.Discard(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// offered loads the session and checks that its mode offers the requested report
func (h *FormHandler) offered(r *http.Request) (models.FormSession, models.ReportVariant, error) {
	vars := mux.Vars(r)
	variant, err := models.ParseVariant(vars["variant"])
	if err != nil {
		return models.FormSession{}, "", err
	}
	sess, err := h.forms.Get(vars["id"])
	if err != nil {
		return models.FormSession{}, "", err
	}
	if !models.Offers(sess.Mode, variant) {
		return models.FormSession{}, "", apperror.NewBadRequestError(
			"Report " + string(variant) + " is not available in " + string(sess.Mode) + " mode")
	}
	return sess, variant, nil
}

// ExportPDF handles POST /api/sessions/{id}/reports/{variant}/pdf
func (h *FormHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	sess, variant, err := h.offered(r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.export.Export(r.Context(), "session:"+sess.ID, variant, sess.Record)
	if err != nil {
		writeError(w, err)
		return
	}
	writeExport(w, res)
}

// Print handles POST /api/sessions/{id}/print/{variant}?copies=N
func (h *FormHandler) Print(w http.ResponseWriter, r *http.Request) {
	sess, variant, err := h.offered(r)
	if err != nil {
		writeError(w, err)
		return
	}

	copies := 1
	if c := r.URL.Query().Get("copies"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil || n < 1 || n > 10 {
			writeError(w, apperror.NewBadRequestError("copies must be between 1 and 10"))
			return
		}
		copies = n
	}

	doc, err := h.reports.BuildDocument(variant, sess.Record)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.printer.PrintDocument(r.Context(), doc, copies); err != nil {
		if !errors.Is(err, services.ErrPrinterUnavailable) {
			writeError(w, apperror.NewAppError(http.StatusBadGateway, err.Error()))
			return
		}
		writeError(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Printed successfully",
	})
}
