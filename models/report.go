package models

import "time"

// UploadFailure describes one record the store refused.
type UploadFailure struct {
	Index  int
	Record Record
	Err    error
}

// UploadReport is the outcome of appending one batch of records.
type UploadReport struct {
	Path       string
	Attempted  int
	Uploaded   int
	Duplicates int
	Keys       []string
	Failures   []UploadFailure
}

// RunReport holds the diagnostics of one commodity's pipeline run.
type RunReport struct {
	Request   ScrapeRequest
	StartedAt time.Time
	Duration  time.Duration

	Rows        int
	Records     int
	SkippedRows int

	Uploaded       int
	Duplicates     int
	UploadFailures int

	// Stage is where the run stopped when Err is set: navigate, extract or upload.
	Stage       string
	FailureKind string
	NavTimeout  bool
	Err         error
}

// Failed reports whether the run was abandoned before the upload finished.
func (r *RunReport) Failed() bool {
	return r.Err != nil
}

// PassReport collects the runs of one full iteration over the commodity list.
type PassReport struct {
	Pass       int
	StartedAt  time.Time
	FinishedAt time.Time
	Runs       []*RunReport
}

// PassSummary is the aggregated view of a PassReport.
type PassSummary struct {
	Pass               int
	Commodities        int
	Succeeded          int
	Failed             int
	NavigationTimeouts int
	RecordsExtracted   int
	RowsSkipped        int
	Uploaded           int
	UploadFailures     int
	Duplicates         int
	Duration           time.Duration
	FailedCommodities  []string
	TopCommodities     []*RunReport
	Runs               []*RunReport
}
