package domain

import "time"

// Status is the persisted state of a pipeline project.
type Status string

const (
	StatusPlanning   Status = "planning"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusCompleted  Status = "completed"
	StatusCanceled   Status = "canceled"
)

// Stage is the board column a project is displayed in. It is derived
// from Status and never stored.
type Stage string

const (
	StageProjectStart        Stage = "project_start"
	StageCandidatesFound     Stage = "candidates_found"
	StageContactMade         Stage = "contact_made"
	StageInterviewsScheduled Stage = "interviews_scheduled"
	StageFinalReview         Stage = "final_review"
	StageCompleted           Stage = "completed"
)

type Project struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"company_id"`
	CompanyName string    `json:"company_name,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	Stage       Stage     `json:"stage"`
	Progress    int       `json:"progress"`
	Recent      bool      `json:"recent"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
