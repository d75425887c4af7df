package model

import (
	"time"
)

// Recipient is one addressee parsed from the uploaded workbook.
// Duplicate emails are allowed and processed independently.
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// MessageTemplate holds the subject and body templates for a send job.
// Both may contain any number of {Name} placeholder occurrences.
type MessageTemplate struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// RenderedMessage is a template with the placeholder substituted for one
// recipient. Recomputed per recipient, never stored.
type RenderedMessage struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// LogStatus is the outcome of one delivery attempt
type LogStatus string

const (
	LogStatusSent   LogStatus = "sent"
	LogStatusFailed LogStatus = "failed"
)

// LogEntry records one delivery attempt. Created exactly once per recipient
// per run and never mutated afterwards.
type LogEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Subject     string    `json:"subject"`
	BodyPreview string    `json:"bodyPreview"`
	Timestamp   time.Time `json:"timestamp"`
	Status      LogStatus `json:"status"`
	Error       string    `json:"error,omitempty"`
}

// Report row statuses. "Not Sent" means the job ran but produced no log
// entry for the row; "Not Processed" means the job never attempted any send.
const (
	ReportStatusSent         = "Sent"
	ReportStatusFailed       = "Failed"
	ReportStatusNotSent      = "Not Sent"
	ReportStatusNotProcessed = "Not Processed"
)

// ReportRow is one row of the downloadable results workbook, one per
// original recipient in upload order.
type ReportRow struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Status        string `json:"status"`
	ErrorDetails  string `json:"errorDetails"`
	SentTimestamp string `json:"sentTimestamp"`
}
