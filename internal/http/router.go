package http

import (
	"net/http"

	"grain-backend/internal/handlers"
	"grain-backend/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups everything the router dispatches to
type Handlers struct {
	Page    *handlers.PageHandler
	Report  *handlers.ReportHandler
	Form    *handlers.FormHandler
	Live    *handlers.LiveHandler
	Health  *handlers.HealthHandler
	Limiter *middleware.ClientRateLimiter
}

func NewRouter(hs Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware)

	// Pages
	r.HandleFunc("/", hs.Page.HomePage).Methods("GET")
	r.HandleFunc("/purchaser", hs.Page.PurchaserPage).Methods("GET")
	r.HandleFunc("/unloader", hs.Page.UnloaderPage).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Stateless calculation and rendering
	api.HandleFunc("/settlement", hs.Report.Settlement).Methods("POST")
	api.HandleFunc("/reports/{variant}/html", hs.Report.ReportHTML).Methods("POST")

	// Form sessions
	api.HandleFunc("/sessions", hs.Form.Create).Methods("POST")
	api.HandleFunc("/sessions/{id}", hs.Form.Get).Methods("GET")
	api.HandleFunc("/sessions/{id}", hs.Form.Discard).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/mode", hs.Form.Navigate).Methods("PUT")
	api.HandleFunc("/sessions/{id}/fields", hs.Form.UpdateFields).Methods("PATCH")
	api.HandleFunc("/sessions/{id}/live", hs.Live.Serve).Methods("GET")

	// Exports and printing are rate limited per client
	exports := api.NewRoute().Subrouter()
	if hs.Limiter != nil {
		exports.Use(hs.Limiter.Middleware)
	}
	exports.HandleFunc("/reports/{variant}/pdf", hs.Report.ReportPDF).Methods("POST")
	exports.HandleFunc("/sessions/{id}/reports/{variant}/pdf", hs.Form.ExportPDF).Methods("POST")
	exports.HandleFunc("/sessions/{id}/print/{variant}", hs.Form.Print).Methods("POST")

	// Health and metrics
	r.HandleFunc("/health", hs.Health.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", hs.Health.ReadinessHealth).Methods("GET")
	r.HandleFunc("/health/detailed", hs.Health.DetailedHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not found", http.StatusNotFound)
	})

	return r
}
