package models

import (
	"fmt"
	"strings"
	"time"
)

// Page is one page of extracted text; Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// ExtractedDocument is the page-ordered text of one upload, already capped.
type ExtractedDocument struct {
	Pages      []Page
	TotalPages int // as reported by the parser, before the cap
}

// Text renders the pages into the blob fed to prompts, one marker per page.
func (d *ExtractedDocument) Text() string {
	var b strings.Builder
	for _, p := range d.Pages {
		fmt.Fprintf(&b, "\n\n[Page %d]\n", p.Number)
		b.WriteString(p.Text)
	}
	return b.String()
}

// Truncated reports whether pages past the cap were skipped.
func (d *ExtractedDocument) Truncated() bool {
	return d.TotalPages > len(d.Pages)
}

// Upload is a raw document handed to the pipeline by the transport.
type Upload struct {
	Data        []byte
	FileName    string
	ContentType string
}

type UploadResult struct {
	SessionID string
	Pages     int
}

// QueryRequest mirrors the /query body.
type QueryRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	UserEmail string `json:"user_email,omitempty"`
	FileName  string `json:"pdf_file_name,omitempty"`
}

const (
	StatusAnswered = "answered"
	StatusError    = "error"
)

// QueryResult is what the pipeline returns for every query. Status never reaches
// the wire; callers only see Answer.
type QueryResult struct {
	Answer string
	Status string
}

// QueryRecord is the audit payload for one answered (or failed) query.
type QueryRecord struct {
	Timestamp time.Time `json:"timestamp"`
	UserEmail string    `json:"user_email"`
	FileName  string    `json:"pdf_file_name"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	Status    string    `json:"status"`
}
