// Package export renders inspection reports to PDF.
package export

import (
	"errors"
	"time"
)

// Report is everything printed on an inspection report.
type Report struct {
	ID          string
	Title       string
	Inspector   string
	Status      string
	Location    string
	Latitude    *float64
	Longitude   *float64
	CreatedAt   time.Time
	SubmittedAt *time.Time
	GeneratedAt time.Time
	Sections    []ReportSection
	Photos      []ReportPhotoGroup
}

type ReportSection struct {
	Number int
	Title  string
	Items  []ReportItem
}

// ReportItem is one answered question. Answer holds the display label for
// choice questions; Text holds free-text answers.
type ReportItem struct {
	Number   int
	Question string
	Answer   string
	Tone     string
	Text     string
}

type ReportPhotoGroup struct {
	Title  string
	Photos []ReportPhoto
}

type ReportPhoto struct {
	URL     string
	Caption string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates no Chromium binary could be found.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
