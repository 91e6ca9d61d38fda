package services

import (
	"regexp"

	"agmark-sync/models"
)

// illegalPathChars matches characters the store rejects in path segments.
var illegalPathChars = regexp.MustCompile(`[.$\[\]/]`)

// placeholder replaces every illegal character.
const placeholder = "_"

// Sanitizer rewrites documents so every key and string value is a legal
// store path segment.
type Sanitizer struct{}

// NewSanitizer creates a Sanitizer.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{}
}

// Sanitize returns a copy of doc with illegal characters replaced in keys and
// string values. Other values are copied unchanged. doc is not modified.
func (s *Sanitizer) Sanitize(doc models.Document) models.Document {
	out := make(models.Document, len(doc))
	for key, value := range doc {
		if str, ok := value.(string); ok {
			value = SanitizeString(str)
		}
		out[SanitizeString(key)] = value
	}
	return out
}

// SanitizeRecord returns a copy of r with every field sanitized.
func (s *Sanitizer) SanitizeRecord(r models.Record) models.Record {
	return models.Record{
		Serial:     SanitizeString(r.Serial),
		City:       SanitizeString(r.City),
		Commodity:  SanitizeString(r.Commodity),
		MinPrice:   SanitizeString(r.MinPrice),
		MaxPrice:   SanitizeString(r.MaxPrice),
		ModalPrice: SanitizeString(r.ModalPrice),
		Date:       SanitizeString(r.Date),
	}
}

// SanitizeString replaces each of . $ [ ] / with an underscore.
func SanitizeString(s string) string {
	return illegalPathChars.ReplaceAllLiteralString(s, placeholder)
}
