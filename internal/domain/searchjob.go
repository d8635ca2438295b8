package domain

import "time"

type JobType string

const (
	TypeRecruiting     JobType = "recruiting"
	TypeLeadGeneration JobType = "lead_generation"
)

type JobSource string

const (
	SourceText    JobSource = "text"
	SourceWebsite JobSource = "website"
	SourcePDF     JobSource = "pdf"
)

type JobStatus string

const (
	JobNew        JobStatus = "new"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCanceled   JobStatus = "canceled"
)

// Terminal reports whether no further processing happens for this status.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCanceled
}

// SearchJob is one request to turn an input (text, website URL or PDF)
// into a generated Boolean search string. Exactly one input field is
// populated, matching Source; GeneratedString is set only once the job
// completes.
type SearchJob struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	CompanyID       string     `json:"company_id,omitempty"`
	Type            JobType    `json:"type"`
	Source          JobSource  `json:"input_source"`
	InputText       string     `json:"input_text,omitempty"`
	InputURL        string     `json:"input_url,omitempty"`
	InputPDFPath    string     `json:"input_pdf_path,omitempty"`
	GeneratedString string     `json:"generated_string,omitempty"`
	Status          JobStatus  `json:"status"`
	Progress        int        `json:"progress"`
	Processed       bool       `json:"is_processed"`
	Error           string     `json:"error,omitempty"`
	Generation      int        `json:"generation"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
}
