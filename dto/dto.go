package dto

import (
	"time"

	"web-dlp/constant"
)

type CreateJobRequest struct {
	URL    string          `json:"url" binding:"required,youtube_url"`
	Format constant.Format `json:"format" binding:"omitempty,media_format"`
}

type CreateJobResponse struct {
	JobId  string             `json:"job_id"`
	Status constant.JobStatus `json:"status"`
}

type JobStatusResponse struct {
	Status   constant.JobStatus `json:"status"`
	Progress int                `json:"progress"`
	Error    string             `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error  string             `json:"error"`
	Status constant.JobStatus `json:"status,omitempty"`
}

type StatsResponse struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Finished   int `json:"finished"`
	Error      int `json:"error"`
}

// JobEvent is published when a job reaches a terminal state.
type JobEvent struct {
	JobId      string             `json:"job_id"`
	Status     constant.JobStatus `json:"status"`
	Format     constant.Format    `json:"format"`
	Error      string             `json:"error,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}
