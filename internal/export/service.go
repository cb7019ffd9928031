package export

import (
	"context"
	"fmt"
	"time"
)

// Service renders inspection reports to PDF with headless Chromium.
type Service struct {
	chromiumPath string
	timeout      time.Duration
}

// NewService creates a new export service. An empty chromiumPath searches PATH.
func NewService(chromiumPath string) *Service {
	return &Service{chromiumPath: chromiumPath, timeout: 45 * time.Second}
}

// InspectionPDF renders report as an A4 PDF.
func (s *Service) InspectionPDF(ctx context.Context, report Report) (*Result, error) {
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now()
	}
	html, err := RenderInspectionHTML(report)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	data, err := printPDF(ctx, s.chromiumPath, html, s.timeout)
	if err != nil {
		return nil, err
	}
	return &Result{
		Data:     data,
		Filename: reportFilename(report),
		MimeType: "application/pdf",
	}, nil
}

func reportFilename(report Report) string {
	stamp := report.CreatedAt
	if report.SubmittedAt != nil {
		stamp = *report.SubmittedAt
	}
	name := sanitizeFilename(report.Title)
	if !stamp.IsZero() {
		name += "-" + stamp.Format("2006-01-02")
	}
	return name + ".pdf"
}
