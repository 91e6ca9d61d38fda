package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"agmark-sync/models"
	"agmark-sync/utils"
)

// ReportService aggregates and prints the diagnostics of a pass.
type ReportService struct {
	logger *utils.Logger
	out    io.Writer
}

// NewReportService creates a ReportService printing to stdout.
func NewReportService(logger *utils.Logger) *ReportService {
	return &ReportService{logger: logger, out: os.Stdout}
}

// WithOutput redirects the printed report.
func (s *ReportService) WithOutput(w io.Writer) *ReportService {
	s.out = w
	return s
}

// Summarize aggregates the runs of a pass.
func (s *ReportService) Summarize(pass *models.PassReport) *models.PassSummary {
	if pass == nil {
		return &models.PassSummary{}
	}
	summary := &models.PassSummary{Pass: pass.Pass}

	summary.Commodities = len(pass.Runs)
	summary.Runs = pass.Runs
	summary.Duration = pass.FinishedAt.Sub(pass.StartedAt)

	var productive []*models.RunReport
	for _, r := range pass.Runs {
		summary.RecordsExtracted += r.Records
		summary.RowsSkipped += r.SkippedRows
		summary.Uploaded += r.Uploaded
		summary.UploadFailures += r.UploadFailures
		summary.Duplicates += r.Duplicates

		if r.Failed() {
			summary.Failed++
			summary.FailedCommodities = append(summary.FailedCommodities, r.Request.Commodity)
			if r.NavTimeout {
				summary.NavigationTimeouts++
			}
			continue
		}
		summary.Succeeded++
		if r.Uploaded > 0 {
			productive = append(productive, r)
		}
	}

	// Top 5 by records uploaded
	sort.SliceStable(productive, func(i, j int) bool {
		return productive[i].Uploaded > productive[j].Uploaded
	})
	if len(productive) > 5 {
		productive = productive[:5]
	}
	summary.TopCommodities = productive

	s.logger.Info("[report] Pass %d: %d/%d commodities ok, %d records uploaded, %d upload failures",
		summary.Pass, summary.Succeeded, summary.Commodities, summary.Uploaded, summary.UploadFailures)
	return summary
}

// Print writes a human readable pass report.
func (s *ReportService) Print(r *models.PassSummary) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)
	w := s.out

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  AGMARKNET SYNC, PASS %d\033[0m\n", r.Pass)
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Commodities processed : \033[1m%d\033[0m\n", r.Commodities)
	fmt.Fprintf(w, "  Succeeded             : \033[1;32m%d\033[0m\n", r.Succeeded)
	fmt.Fprintf(w, "  Failed                : \033[1;31m%d\033[0m\n", r.Failed)
	fmt.Fprintf(w, "  Navigation timeouts   : %d\n", r.NavigationTimeouts)
	fmt.Fprintf(w, "  Duration              : %s\n", r.Duration.Round(time.Second))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Records\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Extracted     : %d\n", r.RecordsExtracted)
	fmt.Fprintf(w, "  Rows skipped  : %d\n", r.RowsSkipped)
	fmt.Fprintf(w, "  Uploaded      : \033[1;32m%d\033[0m\n", r.Uploaded)
	fmt.Fprintf(w, "  Upload failed : %d\n", r.UploadFailures)
	fmt.Fprintf(w, "  Duplicates    : %d\n", r.Duplicates)
	fmt.Fprintln(w)

	if len(r.Runs) > 0 {
		fmt.Fprintf(w, "\033[1;33m  Runs\033[0m\n")
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.AppendHeader(table.Row{"Commodity", "Date", "Rows", "Records", "Uploaded", "Failed", "Status"})
		for _, run := range r.Runs {
			t.AppendRow(table.Row{
				run.Request.Commodity, run.Request.DateText(), run.Rows, run.Records,
				run.Uploaded, run.UploadFailures, runStatus(run),
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\033[1;33m  Top Commodities by Records Uploaded\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.TopCommodities) == 0 {
		fmt.Fprintf(w, "  No records uploaded this pass\n")
	} else {
		for i, run := range r.TopCommodities {
			bar := strings.Repeat("█", min(run.Uploaded, 30))
			fmt.Fprintf(w, "  \033[1m%d.\033[0m %-24s %s (%d)\n",
				i+1, truncate(run.Request.Commodity, 22), bar, run.Uploaded)
		}
	}

	if len(r.FailedCommodities) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "\033[1;33m  Failed Commodities\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		for _, c := range r.FailedCommodities {
			fmt.Fprintf(w, "  \033[31m✗\033[0m %s\n", c)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func runStatus(run *models.RunReport) string {
	switch {
	case run.Failed() && run.FailureKind != "":
		return run.Stage + ": " + run.FailureKind
	case run.Failed():
		return run.Stage + ": failed"
	case run.Records == 0:
		return "empty"
	case run.UploadFailures > 0:
		return "partial"
	}
	return "ok"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
