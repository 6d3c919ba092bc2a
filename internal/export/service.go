package export

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"portal/api/internal/store"
)

// AuditSource is the read side of the audit log.
type AuditSource interface {
	Page(limit, offset int) ([]store.AuditEntry, int)
}

// Service renders audit exports.
type Service struct {
	source  AuditSource
	now     func() time.Time
	timeout time.Duration
	logger  *zap.Logger
}

// NewService creates an export service. timeout bounds a single PDF or DOCX
// conversion; zero uses 30s.
func NewService(source AuditSource, timeout time.Duration, logger *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{source: source, now: time.Now, timeout: timeout, logger: logger}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	entries, total := s.source.Page(req.Limit, 0)
	generated := s.now().UTC()

	data := TemplateData{
		Title:       "Audit Trail",
		GeneratedAt: generated,
		RequestedBy: req.RequestedBy,
		Total:       total,
		Entries:     make([]TemplateEntry, 0, len(entries)),
	}
	for _, e := range entries {
		data.Entries = append(data.Entries, TemplateEntry{
			Timestamp: e.Timestamp,
			UserName:  e.UserName,
			UserID:    e.UserID,
			Action:    e.Action,
			Details:   e.Details,
			Severity:  string(e.Severity),
		})
	}

	html, err := RenderAuditHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	title := "audit-trail-" + generated.Format("20060102-150405")
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var res *Result
	switch req.Format {
	case FormatHTML:
		res = &Result{Data: []byte(html), Filename: sanitizeFilename(title) + ".html", MimeType: "text/html; charset=utf-8"}
	case FormatPDF:
		res, err = exportPDF(ctx, html, title)
	case FormatDOCX:
		res, err = exportDOCX(ctx, html, title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("audit export generated",
		zap.String("format", string(req.Format)),
		zap.Int("entries", len(data.Entries)),
		zap.Int("bytes", len(res.Data)),
	)
	return res, nil
}
