package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the portal's DD-Mon-YYYY date format.
const DateLayout = "02-Jan-2006"

// Document keys written to the store for each Record.
const (
	FieldSerial     = "S.No"
	FieldCity       = "City"
	FieldCommodity  = "Commodity"
	FieldMinPrice   = "Min Price"
	FieldMaxPrice   = "Max Price"
	FieldModalPrice = "Modal Price"
	FieldDate       = "Date"
)

// Record is one price observation for a commodity at a market on a given day.
// Every field is kept as the text the portal displayed.
type Record struct {
	Serial     string
	City       string
	Commodity  string
	MinPrice   string
	MaxPrice   string
	ModalPrice string
	Date       string
}

// Document is the structured payload appended to the store.
type Document map[string]any

// Document converts the record into its store payload.
func (r Record) Document() Document {
	return Document{
		FieldSerial:     r.Serial,
		FieldCity:       r.City,
		FieldCommodity:  r.Commodity,
		FieldMinPrice:   r.MinPrice,
		FieldMaxPrice:   r.MaxPrice,
		FieldModalPrice: r.ModalPrice,
		FieldDate:       r.Date,
	}
}

// Key identifies the observation for duplicate suppression across runs.
func (r Record) Key() string {
	return strings.Join([]string{r.Date, r.City, r.Commodity, r.Serial}, "|")
}

// RawRow is the ordered text fields of one table row before field mapping.
type RawRow []string

// ScrapeRequest is the input to a single pipeline run.
type ScrapeRequest struct {
	State      string
	Commodity  string
	Market     string
	Date       time.Time
	OffsetDays int
}

// NewScrapeRequest derives the target date once, offsetDays before now.
func NewScrapeRequest(state, commodity, market string, now time.Time, offsetDays int) ScrapeRequest {
	return ScrapeRequest{
		State:      state,
		Commodity:  commodity,
		Market:     market,
		Date:       now.AddDate(0, 0, -offsetDays),
		OffsetDays: offsetDays,
	}
}

// DateText is the target date as typed into the portal's date field.
func (r ScrapeRequest) DateText() string {
	return r.Date.Format(DateLayout)
}

func (r ScrapeRequest) String() string {
	return fmt.Sprintf("%s/%s/%s@%s", r.State, r.Market, r.Commodity, r.DateText())
}
