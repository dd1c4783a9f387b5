package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"grain-backend/internal/metrics"
	"grain-backend/internal/models"

	"go.uber.org/zap"
)

var (
	// ErrExportInProgress rejects a second export for the same key while one is running
	ErrExportInProgress = errors.New("an export for this form is already in progress")
	// ErrExportUnavailable means neither the PDF nor the print fallback could be produced
	ErrExportUnavailable = errors.New("pdf export and print fallback both unavailable")
)

// ExportUnavailableNotice is shown to the operator when ErrExportUnavailable is returned
const ExportUnavailableNotice = "Unable to create or download PDF. Please allow popups or try on a desktop."

// Export formats
const (
	FormatPDF   = "pdf"
	FormatPrint = "print"
)

// ExportGuard admits one export per key at a time. release must be called once the
// export finishes; ok is false when another export holds the key.
type ExportGuard interface {
	TryAcquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// ExportResult is what the handler streams back to the browser
type ExportResult struct {
	Format      string
	ContentType string
	Filename    string
	Body        []byte
}

// ExportService renders reports to PDF with a print-ready HTML fallback
type ExportService struct {
	reports       *ReportService
	pdf           PDFRenderer
	guard         ExportGuard
	printFallback bool
	timeout       time.Duration
	logger        *zap.Logger
}

// ExportOptions configures fallback and timeout behaviour
type ExportOptions struct {
	PrintFallback bool
	Timeout       time.Duration
}

func NewExportService(reports *ReportService, pdf PDFRenderer, guard ExportGuard, opts ExportOptions, logger *zap.Logger) *ExportService {
	if guard == nil {
		guard = NewLocalExportGuard()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		reports:       reports,
		pdf:           pdf,
		guard:         guard,
		printFallback: opts.PrintFallback,
		timeout:       opts.Timeout,
		logger:        logger,
	}
}

// Export renders variant for rec. key identifies the caller (session or client) for the
// in-flight guard. Each call is one attempt; nothing is retried.
func (s *ExportService) Export(ctx context.Context, key string, variant models.ReportVariant, rec models.TransactionRecord) (*ExportResult, error) {
	doc, err := s.reports.BuildDocument(variant, rec)
	if err != nil {
		return nil, err
	}

	release, ok, err := s.guard.TryAcquire(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("acquire export slot: %w", err)
	}
	if !ok {
		metrics.ExportRejectedTotal.Inc()
		return nil, ErrExportInProgress
	}
	defer release()

	pdfData, err := s.renderPDF(ctx, doc)
	if err == nil {
		metrics.ReportsGeneratedTotal.WithLabelValues(string(variant), FormatPDF).Inc()
		return &ExportResult{
			Format:      FormatPDF,
			ContentType: "application/pdf",
			Filename:    Filename(variant, rec.Date, "pdf"),
			Body:        pdfData,
		}, nil
	}

	s.logger.Warn("pdf generation failed, falling back to print",
		zap.String("variant", string(variant)), zap.Error(err))

	if !s.printFallback {
		return nil, ErrExportUnavailable
	}

	html, err := s.reports.RenderPrintHTML(doc)
	if err != nil {
		s.logger.Error("print fallback failed", zap.String("variant", string(variant)), zap.Error(err))
		return nil, ErrExportUnavailable
	}

	metrics.ExportFallbacksTotal.WithLabelValues(string(variant)).Inc()
	metrics.ReportsGeneratedTotal.WithLabelValues(string(variant), FormatPrint).Inc()
	return &ExportResult{
		Format:      FormatPrint,
		ContentType: "text/html; charset=utf-8",
		Filename:    Filename(variant, rec.Date, "html"),
		Body:        html,
	}, nil
}

// renderPDF bounds the renderer by the export timeout
func (s *ExportService) renderPDF(ctx context.Context, doc Document) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("pdf renderer panicked: %v", p)}
			}
		}()
		data, err := s.pdf.Render(doc)
		done <- result{data: data, err: err}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// LocalExportGuard is an in-process single-slot lock per key
type LocalExportGuard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewLocalExportGuard() *LocalExportGuard {
	return &LocalExportGuard{inflight: make(map[string]struct{})}
}

func (g *LocalExportGuard) TryAcquire(_ context.Context, key string) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inflight[key]; busy {
		return nil, false, nil
	}
	g.inflight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inflight, key)
			g.mu.Unlock()
		})
	}, true, nil
}
