package entities

import (
	"time"

	"web-dlp/constant"
)

type Job struct {
	ID           string             `json:"id"`
	URL          string             `json:"url"`
	Format       constant.Format    `json:"format"`
	Status       constant.JobStatus `json:"status"`
	Progress     int                `json:"progress"`
	ErrorMessage string             `json:"error,omitempty"`
	ResultPath   string             `json:"-"`
	CreatedAt    time.Time          `json:"created_at"`
	StartedAt    *time.Time         `json:"started_at,omitempty"`
	FinishedAt   *time.Time         `json:"finished_at,omitempty"`
	RetrievedAt  *time.Time         `json:"retrieved_at,omitempty"`
}

// FileName is the name clients receive the artifact under.
func (j Job) FileName() string {
	return j.ID + j.Format.Extension()
}

// Age is the time elapsed since submission.
func (j Job) Age(now time.Time) time.Duration {
	return now.Sub(j.CreatedAt)
}
