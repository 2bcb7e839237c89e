package domain

import "time"

// JobState is the lifecycle stage of an import job.
type JobState string

const (
	JobPending    JobState = "pending"
	JobExtracting JobState = "extracting"
	JobCataloging JobState = "cataloging"
	JobPersisting JobState = "persisting"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ImportJob tracks one package import end to end.
type ImportJob struct {
	ID           string        `json:"id"`
	ArchivePath  string        `json:"archive_path"`
	Checksum     string        `json:"checksum,omitempty"`
	State        JobState      `json:"state"`
	Progress     ImportStatus  `json:"progress"`
	Errors       []ImportError `json:"errors,omitempty"`
	Error        string        `json:"error,omitempty"`
	Workers      int           `json:"workers,omitempty"`
	ChartCount   int           `json:"chart_count"`
	AirportCount int           `json:"airport_count"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at,omitzero"`
}

// ImportStatus is a point-in-time progress snapshot.
type ImportStatus struct {
	Step       int    `json:"step"`
	TotalSteps int    `json:"total_steps"`
	Percent    int    `json:"percent"`
	StepName   string `json:"step_name"`
	Detail     string `json:"detail,omitempty"`
}

// ImportError is one recoverable failure recorded during a job. The job
// carries on past these; only container-level failures abort it.
type ImportError struct {
	Path    string    `json:"path"`
	Phase   string    `json:"phase"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// ImportSummary is the terminal report delivered to consumers.
type ImportSummary struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	ChartCount   int    `json:"chart_count"`
	AirportCount int    `json:"airport_count"`
	ErrorCount   int    `json:"error_count"`
}
