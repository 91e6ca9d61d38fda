package agmarknet

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"agmark-sync/models"
	"agmark-sync/utils"
)

func quietLogger() *utils.Logger {
	return utils.NewLoggerWithLevel(io.Discard, slog.LevelError, true)
}

// tr renders a row whose text splits back into "", cells..., "_".
func tr(cells ...string) string {
	var b strings.Builder
	b.WriteString("<tr>\n\n")
	for i, c := range cells {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "<td>%s</td>", c)
	}
	b.WriteString("\n</tr>")
	return b.String()
}

func dataRow(serial, city, commodity, min, max, modal, date string) string {
	return tr(serial, city, "Bangalore APMC", commodity, "Other", "FAQ", min, max, modal, date, "")
}

func headerRowsHTML() string {
	return tr("Market Wise Daily Report") +
		tr("Commodity: Wheat") +
		tr("") +
		tr("Sl no.", "District Name", "Market Name", "Commodity", "Variety", "Grade",
			"Min Price (Rs./Quintal)", "Max Price (Rs./Quintal)", "Modal Price (Rs./Quintal)", "Price Date", "")
}

func page(rows ...string) string {
	return `<html><body><table id="cphBody_GridPriceData"><tbody>` +
		strings.Join(rows, "\n") +
		`</tbody></table></body></html>`
}

func TestSplitRow(t *testing.T) {
	row := SplitRow("\n\n1\n\nBangalore\n\nWheat\n")
	want := models.RawRow{"", "1", "Bangalore", "Wheat_"}
	if diff := cmp.Diff(want, row); diff != "" {
		t.Errorf("SplitRow mismatch (-want +got):\n%s", diff)
	}

	// runs of two spaces left by indentation are removed
	row = SplitRow("\n\n    Wheat  \n\n  10")
	want = models.RawRow{"", "Wheat", "10"}
	if diff := cmp.Diff(want, row); diff != "" {
		t.Errorf("SplitRow indentation mismatch (-want +got):\n%s", diff)
	}
}

func TestMapRowPositions(t *testing.T) {
	row := models.RawRow{"", "1", "City", "x", "Commodity", "v", "g", "10", "20", "15", "01-Jan-2024", "extra"}

	got, err := MapRow(row)
	if err != nil {
		t.Fatalf("MapRow: %v", err)
	}

	want := models.Record{
		Serial:     "1",
		City:       "City",
		Commodity:  "Commodity",
		MinPrice:   "10",
		MaxPrice:   "20",
		ModalPrice: "15",
		Date:       "01-Jan-2024",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MapRow mismatch (-want +got):\n%s", diff)
	}
}

func TestMapRowTooShort(t *testing.T) {
	for n := 0; n < minRowFields; n++ {
		row := make(models.RawRow, n)
		if _, err := MapRow(row); err == nil {
			t.Errorf("row with %d fields should not map", n)
		}
	}
	if _, err := MapRow(make(models.RawRow, minRowFields)); err != nil {
		t.Errorf("row with %d fields should map: %v", minRowFields, err)
	}
}

func TestExtractSkipsHeaderAndFooter(t *testing.T) {
	html := page(
		headerRowsHTML(),
		dataRow("1", "Bangalore", "Wheat", "2500", "3100", "2800", "01-Jan-2024"),
		dataRow("2", "Bangalore", "Wheat", "2600", "3000", "2750", "01-Jan-2024"),
		tr("1", "2", ">>"),
	)

	ex, err := NewTableExtractor(quietLogger()).Extract(html)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if ex.Rows != 7 {
		t.Errorf("rows: got %d, want 7", ex.Rows)
	}
	if len(ex.Records) != ex.Rows-headerRows-footerRows {
		t.Fatalf("records: got %d, want %d", len(ex.Records), ex.Rows-headerRows-footerRows)
	}
	if ex.Skipped != 0 {
		t.Errorf("skipped: got %d, want 0", ex.Skipped)
	}

	want := models.Record{
		Serial: "1", City: "Bangalore", Commodity: "Wheat",
		MinPrice: "2500", MaxPrice: "3100", ModalPrice: "2800", Date: "01-Jan-2024",
	}
	if diff := cmp.Diff(want, ex.Records[0]); diff != "" {
		t.Errorf("first record mismatch (-want +got):\n%s", diff)
	}
	if ex.Records[1].Serial != "2" {
		t.Errorf("order not preserved: second serial %q", ex.Records[1].Serial)
	}
}

func TestExtractSkipsShortRows(t *testing.T) {
	html := page(
		headerRowsHTML(),
		dataRow("1", "Bangalore", "Wheat", "2500", "3100", "2800", "01-Jan-2024"),
		tr("No Data Found"),
		dataRow("2", "Mysore", "Wheat", "2400", "2900", "2700", "01-Jan-2024"),
		tr("footer"),
	)

	ex, err := NewTableExtractor(quietLogger()).Extract(html)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(ex.Records) != 2 {
		t.Fatalf("records: got %d, want 2", len(ex.Records))
	}
	if ex.Skipped != 1 {
		t.Errorf("skipped: got %d, want 1", ex.Skipped)
	}
	if ex.Records[1].City != "Mysore" {
		t.Errorf("second record city: got %q", ex.Records[1].City)
	}
}

func TestExtractEmptyTable(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{name: "no table", html: "<html><body><p>Server busy</p></body></html>"},
		{name: "headers and footer only", html: page(headerRowsHTML(), tr("footer"))},
		{name: "empty document", html: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, err := NewTableExtractor(quietLogger()).Extract(tt.html)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if len(ex.Records) != 0 {
				t.Errorf("expected no records, got %d", len(ex.Records))
			}
		})
	}
}
