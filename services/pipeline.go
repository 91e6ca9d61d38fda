package services

import (
	"context"
	"fmt"
	"time"

	"agmark-sync/metrics"
	"agmark-sync/models"
	"agmark-sync/scraper/agmarknet"
	"agmark-sync/utils"
)

// Navigator reaches the results page for a request and returns its markup.
type Navigator interface {
	Navigate(ctx context.Context, req models.ScrapeRequest) (string, error)
}

// Extractor parses results markup into records.
type Extractor interface {
	Extract(html string) (*agmarknet.Extraction, error)
}

// RecordUploader appends records to the store.
type RecordUploader interface {
	Upload(ctx context.Context, records []models.Record) (*models.UploadReport, error)
}

// Pipeline runs navigate, extract and upload for one commodity.
type Pipeline struct {
	navigator  Navigator
	extractor  Extractor
	uploader   RecordUploader
	runTimeout time.Duration
	logger     *utils.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewPipeline wires the stages. runTimeout caps a whole run; zero means no cap.
func NewPipeline(nav Navigator, ext Extractor, up RecordUploader, runTimeout time.Duration, logger *utils.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		navigator:  nav,
		extractor:  ext,
		uploader:   up,
		runTimeout: runTimeout,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// Run executes one pipeline run. The report is always returned; the error is
// set when the run was abandoned at some stage.
func (p *Pipeline) Run(ctx context.Context, req models.ScrapeRequest) (*models.RunReport, error) {
	report := &models.RunReport{Request: req, StartedAt: p.now()}
	defer func() { report.Duration = p.now().Sub(report.StartedAt) }()

	if p.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.runTimeout)
		defer cancel()
	}

	p.logger.Info("[pipeline] %s: navigating portal", req)
	html, err := p.navigator.Navigate(ctx, req)
	if err != nil {
		kind := agmarknet.ErrorKind(err)
		report.Stage, report.FailureKind, report.NavTimeout = "navigate", kind, kind == "timeout"
		p.metrics.IncNavError(kind)
		return p.fail(report, fmt.Errorf("navigate: %w", err))
	}

	ex, err := p.extractor.Extract(html)
	if err != nil {
		report.Stage = "extract"
		return p.fail(report, fmt.Errorf("extract: %w", err))
	}
	report.Rows, report.Records, report.SkippedRows = ex.Rows, len(ex.Records), ex.Skipped
	p.metrics.AddExtracted(len(ex.Records), ex.Skipped)

	if len(ex.Records) == 0 {
		p.logger.Warn("[pipeline] %s: no records published yet (%d rows)", req, ex.Rows)
		p.metrics.IncRun(req.Commodity, "empty")
		return report, nil
	}

	up, err := p.uploader.Upload(ctx, ex.Records)
	if err != nil {
		report.Stage = "upload"
		return p.fail(report, fmt.Errorf("upload: %w", err))
	}
	report.Uploaded, report.Duplicates, report.UploadFailures = up.Uploaded, up.Duplicates, len(up.Failures)
	p.metrics.AddUploads("ok", up.Uploaded)
	p.metrics.AddUploads("failed", len(up.Failures))
	p.metrics.AddUploads("duplicate", up.Duplicates)

	outcome := "ok"
	if len(up.Failures) > 0 {
		outcome = "partial"
	}
	p.metrics.IncRun(req.Commodity, outcome)

	p.logger.Info("[pipeline] %s: %d records, %d uploaded, %d failed, %d duplicates, %d rows skipped",
		req, len(ex.Records), up.Uploaded, len(up.Failures), up.Duplicates, ex.Skipped)
	return report, nil
}

func (p *Pipeline) fail(report *models.RunReport, err error) (*models.RunReport, error) {
	report.Err = err
	p.metrics.IncRun(report.Request.Commodity, "failed")
	return report, err
}
