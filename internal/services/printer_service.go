package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var ErrPrinterUnavailable = errors.New("printer bridge is not configured")

// PrintLinesRequest is the payload accepted by the thermal-printer bridge
type PrintLinesRequest struct {
	Title  string   `json:"title"`
	Lines  []string `json:"lines"`
	Copies int      `json:"copies"`
}

type PrintResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// PrinterService sends report text to the network printer bridge in the weighbridge office
type PrinterService struct {
	client  *resty.Client
	enabled bool
}

// NewPrinterService returns a disabled service when baseURL is empty
func NewPrinterService(baseURL string, timeout time.Duration) *PrinterService {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &PrinterService{
		client:  client,
		enabled: baseURL != "",
	}
}

// Enabled reports whether a bridge URL is configured
func (s *PrinterService) Enabled() bool {
	return s.enabled
}

// PrintDocument prints doc as plain lines; copies below 1 prints one
func (s *PrinterService) PrintDocument(ctx context.Context, doc Document, copies int) error {
	if !s.enabled {
		return ErrPrinterUnavailable
	}
	if copies < 1 {
		copies = 1
	}

	req := PrintLinesRequest{
		Title:  doc.Title,
		Lines:  doc.Lines(),
		Copies: copies,
	}

	var printResp PrintResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&printResp).
		Post("/print-lines")
	if err != nil {
		return fmt.Errorf("failed to send print request: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("printer bridge returned status %d", resp.StatusCode())
	}
	if !printResp.Success {
		return fmt.Errorf("print failed: %s", printResp.Message)
	}
	return nil
}
