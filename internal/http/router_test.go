package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"grain-backend/internal/handlers"
	"grain-backend/internal/health"
	"grain-backend/internal/middleware"
	"grain-backend/internal/models"
	"grain-backend/internal/services"

	"github.com/gorilla/websocket"
)

type testServer struct {
	*httptest.Server
	forms  *services.FormService
	health *health.HealthChecker
}

func newTestServer(t *testing.T, pdf services.PDFRenderer, printerURL string) *testServer {
	t.Helper()

	settlement, err := services.NewSettlementService(models.FormulaPerQuintal)
	if err != nil {
		t.Fatal(err)
	}
	reports := services.NewReportService("", settlement)
	export := services.NewExportService(reports, pdf, services.NewLocalExportGuard(),
		services.ExportOptions{PrintFallback: true, Timeout: 5 * time.Second}, nil)
	forms := services.NewFormService(nil)
	printer := services.NewPrinterService(printerURL, time.Second)
	checker := health.NewHealthChecker(nil, forms.Count)

	router := NewRouter(Handlers{
		Page:    handlers.NewPageHandler("", settlement.Formula()),
		Report:  handlers.NewReportHandler(settlement, reports, export),
		Form:    handlers.NewFormHandler(forms, settlement, reports, export, printer),
		Live:    handlers.NewLiveHandler(forms, settlement, nil),
		Health:  handlers.NewHealthHandler(checker),
		Limiter: middleware.NewClientRateLimiter(100, 100),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, forms: forms, health: checker}
}

func (s *testServer) do(t *testing.T, method, path, contentType string, body []byte, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) doJSON(t *testing.T, method, path string, v interface{}) *http.Response {
	t.Helper()
	var body []byte
	if v != nil {
		var err error
		if body, err = json.Marshal(v); err != nil {
			t.Fatal(err)
		}
	}
	return s.do(t, method, path, "application/json", body)
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

type failingRenderer struct{}

func (failingRenderer) Render(services.Document) ([]byte, error) {
	return nil, http.ErrHandlerTimeout
}

func TestSettlementEndpoint(t *testing.T) {
	s := newTestServer(t, services.NewPDFService(), "")

	resp := s.do(t, http.MethodPost, "/api/settlement", "application/json",
		[]byte(`{"bags":"20","rate":2000,"hammali":"50","amountOnHold":500,"advanceAmount":"1000","kisanName":"x"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got models.SettlementResponse
	decode(t, resp, &got)
	if got.Display.Quantity != "10.00" || got.Display.BalanceAfterAdvance != "19000.00" {
		t.Errorf("unexpected settlement %+v", got.Display)
	}
}

func TestSettlementEndpointMultipart(t *testing.T) {
	s := newTestServer(t, services.NewPDFService(), "")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("bags", "20")
	mw.WriteField("rate", "2000")
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	resp := s.do(t, http.MethodPost, "/api/settlement", mw.FormDataContentType(), body.Bytes())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got models.SettlementResponse
	decode(t, resp, &got)
	if got.Display.Quantity != "10.00" || got.Display.RoughCost != "20000.00" {
		t.Errorf("multipart fields ignored: %+v", got.Display)
	}
}

func TestSettlementEndpointEmptyBody(t *testing.T) {
	s := newTestServer(t, services.NewPDFService(), "")

	resp := s.do(t, http.MethodPost, "/api/settlement", "application/json", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got models.SettlementResponse
	decode(t, resp, &got)
	if got.Display.TotalRoughCost != "0.00" {
		t.Errorf("blank record total = %q", got.Display.TotalRoughCost)
	}
}

func TestReportHTMLFromForm(t *testing.T) {
	s := newTestServer(t, services.NewPDFService(), "")

	form := url.Values{"kisanName": {"<b>Ramesh</b>"}, "bags": {"20"}, "rate": {"2000"}}
	resp := s.do(t, http.MethodPost, "/api/reports/office/html", "application/x-www-form-urlencoded", []byte(form.Encode()))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), "&lt;b&gt;Ramesh&lt;/b&gt;") {
		t.Error("kisan name not escaped in HTML report")
	}
}

func TestReportUnknownVariant(t *testing.T) {
	s := newTestServer(t, services.NewPDFService(), "")
	resp := s.doJSON(t, http.MethodPost, "/api/reports/invoice/html", map[string]string{})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestReportPDF(t *testing.T) {
	s := newTestServer(t, services.NewPDFService(), "")

	resp := s.doJSON(t, http.MethodPost, "/api/reports/unloader_slip/pdf", map[string]string{"date": "27/12/25"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %q", ct)
	}
	if resp.Header.Get("X-Export-Format") != "pdf" {
		t.Error("missing export format header")
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="unloader_slip_27-12-25.pdf"` {
		t.Errorf("content disposition = %q", cd)
	}
}

func TestReportPDFFallsBackToPrint(t *testing.T) {
	s := newTestServer(t, failingRenderer{}, "")

	resp := s.doJSON(t, http.MethodPost, "/api/reports/office/pdf", map[string]string{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Export-Format") != "print" {
		t.Errorf("format = %q, want print", resp.Header.Get("X-Export-Format"))
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Disposition"), "inline;") {
		t.Error("print fallback should open inline")
	}
}

func TestSessionFlow(t *testing.T) {
	s := newTestServer(t, services.NewPDFService(), "")

	resp := s.doJSON(t, http.MethodPost, "/api/sessions", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var view handlers.SessionView
	decode(t, resp, &view)
	id := view.Session.ID
	if view.Session.Mode != models.ModeHome || len(view.Variants) != 0 {
		t.Fatalf("unexpected new session %+v", view)
	}

	// editing on the home screen is a conflict
	resp = s.doJSON(t, http.MethodPatch, "/api/sessions/"+id+"/fields", models.UpdateFieldsRequest{
		Updates: []models.FieldUpdate{{Field: models.FieldBags, Value: "20"}},
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("edit on home status = %d, want 409", resp.StatusCode)
	}

	resp = s.doJSON(t, http.MethodPut, "/api/sessions/"+id+"/mode", models.NavigateRequest{Mode: "purchaser"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("navigate status = %d", resp.StatusCode)
	}

	resp = s.doJSON(t, http.MethodPatch, "/api/sessions/"+id+"/fields", models.UpdateFieldsRequest{
		Updates: []models.FieldUpdate{
			{Field: models.FieldBags, Value: "20"},
			{Field: models.FieldRate, Value: "2000"},
			{Field: models.FieldHammali, Value: "50"},
			{Field: models.FieldDate, Value: "27/12/25"},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	decode(t, resp, &view)
	if view.Settlement.Display.TotalRoughCost != "20500.00" {
		t.Errorf("total = %q", view.Settlement.Display.TotalRoughCost)
	}

	resp = s.doJSON(t, http.MethodPatch, "/api/sessions/"+id+"/fields", models.UpdateFieldsRequest{
		Updates: []models.FieldUpdate{{Field: "kisan", Value: "x"}},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want 400", resp.StatusCode)
	}

	// the slip is not offered in purchaser mode
	resp = s.doJSON(t, http.MethodPost, "/api/sessions/"+id+"/reports/unloader_slip/pdf", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("slip in purchaser mode status = %d, want 400", resp.StatusCode)
	}

	resp = s.doJSON(t, http.MethodPost, "/api/sessions/"+id+"/reports/office/pdf", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session export status = %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "office_27-12-25.pdf") {
		t.Errorf("content disposition = %q", cd)
	}

	resp = s.doJSON(t, http.MethodPut, "/api/sessions/"+id+"/mode", models.NavigateRequest{Mode: "unloader"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("purchaser -> unloader status = %d, want 409", resp.StatusCode)
	}

	resp = s.doJSON(t, http.MethodPut, "/api/sessions/"+id+"/mode", models.NavigateRequest{Mode: "home"})
	decode(t, resp, &view)
	if view.Session.Record != (models.TransactionRecord{}) {
		t.Error("record kept after returning home")
	}

	resp = s.doJSON(t, http.MethodDelete, "/api/sessions/"+id, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("discard status = %d", resp.StatusCode)
	}
	resp = s.doJSON(t, http.MethodGet, "/api/sessions/"+id, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after discard status = %d", resp.StatusCode)
	}
}

func TestNavigateRejectsUnknownMode(t *testing.T) {
	s := newTestServer(t, services.NewPDFService(), "")
	sess := s.forms.Create()

	resp := s.doJSON(t, http.MethodPut, "/api/sessions/"+sess.ID+"/mode", models.NavigateRequest{Mode: "admin"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestPrintWithoutBridge(t *testing.T) {
	s := newTestServer(t, services.NewPDFService(), "")
	sess := s.forms.Create()
	s.forms.Navigate(sess.ID, models.ModeUnloader)

	resp := s.doJSON(t, http.MethodPost, "/api/sessions/"+sess.ID+"/print/unloader_slip", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestPrintThroughBridge(t *testing.T) {
	var calls atomic.Int32
	bridge := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"message":"ok"}`))
	}))
	defer bridge.Close()

	s := newTestServer(t, services.NewPDFService(), bridge.URL)
	sess := s.forms.Create()
	s.forms.Navigate(sess.ID, models.ModeUnloader)

	resp := s.doJSON(t, http.MethodPost, "/api/sessions/"+sess.ID+"/print/unloader_slip?copies=2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("bridge called %d times", n)
	}

	resp = s.doJSON(t, http.MethodPost, "/api/sessions/"+sess.ID+"/print/unloader_slip?copies=50", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("copies=50 status = %d, want 400", resp.StatusCode)
	}
}

func TestLiveChannel(t *testing.T) {
	s := newTestServer(t, services.NewPDFService(), "")
	sess := s.forms.Create()
	s.forms.Navigate(sess.ID, models.ModePurchaser)

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/sessions/" + sess.ID + "/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg handlers.LiveMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("initial preview: %v", err)
	}
	if msg.Settlement == nil || msg.Settlement.Display.Quantity != "0.00" {
		t.Fatalf("unexpected initial preview %+v", msg)
	}

	for _, upd := range []models.FieldUpdate{
		{Field: models.FieldBags, Value: "20"},
		{Field: models.FieldRate, Value: "2000"},
	} {
		if err := conn.WriteJSON(upd); err != nil {
			t.Fatalf("write: %v", err)
		}
		msg = handlers.LiveMessage{}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
	}
	if msg.Settlement == nil || msg.Settlement.Display.RoughCost != "20000.00" {
		t.Errorf("unexpected preview %+v", msg)
	}

	conn.WriteJSON(models.FieldUpdate{Field: "nope", Value: "1"})
	msg = handlers.LiveMessage{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Error == "" {
		t.Error("unknown field should come back as an error message")
	}

	stored, _ := s.forms.Get(sess.ID)
	if stored.Record.Rate != models.NewNumber(2000) {
		t.Errorf("live edits not stored: %+v", stored.Record)
	}
}

func TestLiveUnknownSession(t *testing.T) {
	s := newTestServer(t, services.NewPDFService(), "")
	resp := s.doJSON(t, http.MethodGet, "/api/sessions/missing/live", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestPagesAndHealth(t *testing.T) {
	s := newTestServer(t, services.NewPDFService(), "")

	for path, want := range map[string]string{
		"/":          "Sapna Trading Company",
		"/purchaser": "/api/reports/office/pdf",
		"/unloader":  "/api/reports/unloader_slip/pdf",
		"/health":    `"ok"`,
	} {
		resp := s.do(t, http.MethodGet, path, "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status = %d", path, resp.StatusCode)
			continue
		}
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		if !strings.Contains(buf.String(), want) {
			t.Errorf("%s: body missing %q", path, want)
		}
	}

	resp := s.do(t, http.MethodGet, "/health/ready", "", nil)
	var status health.HealthStatus
	decode(t, resp, &status)
	if status.Status != "healthy" || status.Redis.Status != "disabled" {
		t.Errorf("unexpected readiness %+v", status)
	}
}

func TestReadinessFailsWhileDraining(t *testing.T) {
	s := newTestServer(t, services.NewPDFService(), "")

	resp := s.do(t, http.MethodGet, "/health/ready", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ready status = %d, want 200", resp.StatusCode)
	}

	s.health.SetDraining()

	resp = s.do(t, http.MethodGet, "/health/ready", "", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("draining status = %d, want 503", resp.StatusCode)
	}
	var status health.HealthStatus
	decode(t, resp, &status)
	if status.Status != "draining" {
		t.Errorf("status = %q, want draining", status.Status)
	}

	resp = s.do(t, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("liveness status = %d while draining, want 200", resp.StatusCode)
	}
}

// firstCallBlocks holds the first Render until release is closed.
type firstCallBlocks struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (r *firstCallBlocks) Render(services.Document) ([]byte, error) {
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.started)
		<-r.release
	}
	return []byte("%PDF-1.3 test"), nil
}

func TestExportGuardIsPerBrowser(t *testing.T) {
	pdf := &firstCallBlocks{started: make(chan struct{}), release: make(chan struct{})}
	s := newTestServer(t, pdf, "")

	browserA := &http.Cookie{Name: "export_client", Value: "0b6f1f4e-8d9a-4c61-9a36-7f0a3c2b5d11"}
	browserB := &http.Cookie{Name: "export_client", Value: "5c2e9a7d-3b41-4f08-8e6c-1d9b0a4f7e22"}
	body := []byte(`{"bags":"20","rate":"2000"}`)

	done := make(chan int, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodPost, s.URL+"/api/reports/office/pdf", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(browserA)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	select {
	case <-pdf.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first export never reached the renderer")
	}

	// another operator behind the same address is not blocked
	resp := s.do(t, http.MethodPost, "/api/reports/office/pdf", "application/json", body, browserB)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("other browser status = %d, want 200", resp.StatusCode)
	}

	resp = s.do(t, http.MethodPost, "/api/reports/office/pdf", "application/json", body, browserA)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("same browser status = %d, want 409", resp.StatusCode)
	}

	close(pdf.release)
	if code := <-done; code != http.StatusOK {
		t.Errorf("first export status = %d, want 200", code)
	}
}

func TestExportIssuesClientCookie(t *testing.T) {
	s := newTestServer(t, services.NewPDFService(), "")

	resp := s.doJSON(t, http.MethodPost, "/api/reports/office/pdf", map[string]string{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == "export_client" && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("export response did not set the export_client cookie")
	}
}
