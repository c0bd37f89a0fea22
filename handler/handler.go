package handler

import (
	"context"

	"web-dlp/entities"
	"web-dlp/service"
)

type ServiceDependencies struct {
	DownloadService service.Service
}

// JobHandler runs one claimed job for the worker pool.
func JobHandler(ctx context.Context, job entities.Job, deps ServiceDependencies) error {
	return deps.DownloadService.Process(ctx, job)
}
