package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"grain-backend/internal/models"
	"grain-backend/internal/services"
	"grain-backend/pkg/apperror"
	"grain-backend/pkg/utils"

	"github.com/gorilla/mux"
)

// maxBodyBytes caps record payloads; a full record is well under 8KB
const maxBodyBytes = 64 << 10

// writeError maps service errors onto HTTP statuses
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		appErr = apperror.NewNotFoundError("Session")
	case errors.Is(err, models.ErrUnknownVariant):
		appErr = apperror.NewNotFoundError("Report variant")
	case errors.Is(err, models.ErrUnknownField):
		appErr = apperror.NewBadRequestError(err.Error())
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, services.ErrFormNotOpen),
		errors.Is(err, services.ErrExportInProgress):
		appErr = apperror.NewConflictError(err.Error())
	case errors.Is(err, services.ErrExportUnavailable):
		appErr = apperror.NewUnavailableError(services.ExportUnavailableNotice)
	case errors.Is(err, services.ErrPrinterUnavailable):
		appErr = apperror.NewUnavailableError(err.Error())
	case apperror.IsAppError(err):
		appErr = apperror.GetAppError(err)
	default:
		appErr = apperror.ErrInternalServer
	}
	utils.JSON(w, appErr.Code, appErr)
}

// variantFromPath reads {variant} from the route
func variantFromPath(r *http.Request) (models.ReportVariant, error) {
	return models.ParseVariant(mux.Vars(r)["variant"])
}

// decodeRecord accepts either a JSON record or a submitted HTML form.
// An empty body is an empty record.
func decodeRecord(w http.ResponseWriter, r *http.Request) (models.TransactionRecord, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return models.TransactionRecord{}, apperror.NewBadRequestError("Invalid form data")
		}
		return models.RecordFromValues(r.PostForm), nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return models.TransactionRecord{}, apperror.NewBadRequestError("Invalid form data")
		}
		return models.RecordFromValues(r.MultipartForm.Value), nil
	}

	var rec models.TransactionRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil && !errors.Is(err, io.EOF) {
		return models.TransactionRecord{}, apperror.NewBadRequestError(fmt.Sprintf("Invalid request body: %v", err))
	}
	return rec, nil
}

// writeExport streams an export result. PDFs download; the print fallback opens inline.
func writeExport(w http.ResponseWriter, res *services.ExportResult) {
	disposition := "attachment"
	if res.Format == services.FormatPrint {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=\"%s\"", disposition, res.Filename))
	w.Header().Set("X-Export-Format", res.Format)
	w.WriteHeader(http.StatusOK)
	w.Write(res.Body)
}
