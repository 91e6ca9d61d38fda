package services

import (
	"context"
	"fmt"

	"agmark-sync/models"
	"agmark-sync/storage"
	"agmark-sync/utils"
)

// Uploader appends sanitized records under a fixed collection path.
type Uploader struct {
	store     storage.Store
	path      string
	sanitizer *Sanitizer
	dedup     *utils.KeySet
	logger    *utils.Logger
}

// NewUploader creates an Uploader writing to path in store. dedup may be nil,
// in which case every record is pushed (at-least-once).
func NewUploader(store storage.Store, path string, sanitizer *Sanitizer, dedup *utils.KeySet, logger *utils.Logger) *Uploader {
	return &Uploader{
		store:     store,
		path:      path,
		sanitizer: sanitizer,
		dedup:     dedup,
		logger:    logger,
	}
}

// Upload pushes each record independently. A failed record is reported and
// the rest of the batch still goes out. The returned error is set only when
// the collection cannot be resolved at all.
func (u *Uploader) Upload(ctx context.Context, records []models.Record) (*models.UploadReport, error) {
	col, err := u.store.Collection(ctx, u.path)
	if err != nil {
		return nil, fmt.Errorf("uploader: resolve %q: %w", u.path, err)
	}

	report := &models.UploadReport{Path: col.Path()}

	for i, rec := range records {
		clean := u.sanitizer.SanitizeRecord(rec)
		key := clean.Key()

		if u.dedup != nil && !u.dedup.Add(key) {
			report.Duplicates++
			u.logger.Debug("[uploader] Duplicate skipped: %s", key)
			continue
		}

		report.Attempted++
		doc := u.sanitizer.Sanitize(clean.Document())
		pushID, err := col.Push(ctx, doc)
		if err != nil {
			if u.dedup != nil {
				u.dedup.Remove(key)
			}
			report.Failures = append(report.Failures, models.UploadFailure{Index: i, Record: rec, Err: err})
			u.logger.Warn("[uploader] Failed to upload %s: %v", key, err)
			continue
		}

		report.Uploaded++
		report.Keys = append(report.Keys, pushID)
		u.logger.Debug("[uploader] Uploaded %s as %s/%s", key, col.Path(), pushID)
	}

	return report, nil
}
