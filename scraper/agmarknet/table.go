package agmarknet

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"agmark-sync/models"
	"agmark-sync/utils"
)

// Layout of the price grid. Rows are split on the delimiter left behind by
// the cell markup, so column positions count the leading empty field.
const (
	headerRows = 4 // title, filter echo, blank spacer, column headings
	footerRows = 1 // pager / totals row

	colSerial     = 1
	colCity       = 2
	colCommodity  = 4
	colMinPrice   = 7
	colMaxPrice   = 8
	colModalPrice = 9
	colDate       = 10

	minRowFields = colDate + 1
)

// Extraction is the result of parsing one results page.
type Extraction struct {
	Records []models.Record
	// Rows is the number of table rows found, headers and footer included.
	Rows    int
	Skipped int
}

// TableExtractor turns the results page markup into Records.
type TableExtractor struct {
	logger *utils.Logger
}

// NewTableExtractor creates a TableExtractor.
func NewTableExtractor(logger *utils.Logger) *TableExtractor {
	return &TableExtractor{logger: logger}
}

// Extract parses html and maps every data row to a Record. Rows that are too
// short are skipped with a warning; an empty result is not an error.
func (e *TableExtractor) Extract(html string) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("extract: parse document: %w", err)
	}

	rows := RawRows(doc)
	out := &Extraction{Rows: len(rows)}

	if len(rows) <= headerRows+footerRows {
		return out, nil
	}

	for i, row := range rows[headerRows : len(rows)-footerRows] {
		rec, err := MapRow(row)
		if err != nil {
			out.Skipped++
			e.logger.Warn("[extract] Skipping row %d: %v", i+headerRows, err)
			continue
		}
		out.Records = append(out.Records, rec)
	}

	return out, nil
}

// RawRows splits the text of every tr in doc into fields.
func RawRows(doc *goquery.Document) []models.RawRow {
	var rows []models.RawRow
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		rows = append(rows, SplitRow(tr.Text()))
	})
	return rows
}

// SplitRow turns a row's concatenated text into fields: line breaks become
// "_", double spaces are dropped and "__" separates fields.
func SplitRow(text string) models.RawRow {
	text = strings.ReplaceAll(text, "\n", "_")
	text = strings.ReplaceAll(text, "  ", "")
	return models.RawRow(strings.Split(text, "__"))
}

// MapRow maps a RawRow to a Record by fixed column positions.
func MapRow(row models.RawRow) (models.Record, error) {
	if len(row) < minRowFields {
		return models.Record{}, fmt.Errorf("row has %d fields, need %d", len(row), minRowFields)
	}

	field := func(i int) string {
		return strings.TrimSpace(row[i])
	}

	return models.Record{
		Serial:     field(colSerial),
		City:       field(colCity),
		Commodity:  field(colCommodity),
		MinPrice:   field(colMinPrice),
		MaxPrice:   field(colMaxPrice),
		ModalPrice: field(colModalPrice),
		Date:       field(colDate),
	}, nil
}
