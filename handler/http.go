package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"web-dlp/dto"
	"web-dlp/pkg/ratelimit"
	"web-dlp/repository"
	"web-dlp/service"
)

type HttpDependencies struct {
	JobService service.JobService
	Limiter    ratelimit.Limiter
	Throttle   *ratelimit.Throttle
	Logger     *zerolog.Logger
	// TrustedProxies are the only peers whose forwarding headers are
	// honoured when resolving the client IP.
	TrustedProxies []string
}

// RegisterRoutes mounts the public API on r.
func RegisterRoutes(r *gin.Engine, deps HttpDependencies) error {
	RegisterValidators()

	if err := r.SetTrustedProxies(deps.TrustedProxies); err != nil {
		return err
	}

	if deps.Logger == nil {
		nop := zerolog.Nop()
		deps.Logger = &nop
	}
	h := &httpHandler{jobs: deps.JobService}

	r.Use(RequestLogger(deps.Logger), gin.Recovery(), Throttle(deps.Throttle))
	r.GET("/", h.Health)
	r.GET("/health", h.Health)
	r.POST("/request", RateLimit(deps.Limiter), h.CreateJob)
	r.GET("/status", h.Status)
	r.GET("/result", h.Result)
	r.GET("/stats", h.Stats)
	return nil
}

type httpHandler struct {
	jobs service.JobService
}

func (h *httpHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (h *httpHandler) CreateJob(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("rejected job request")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: bindingError(err)})
		return
	}

	job, err := h.jobs.Submit(ctx, req.URL, req.Format.String())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.CreateJobResponse{JobId: job.ID, Status: job.Status})
}

func (h *httpHandler) Status(c *gin.Context) {
	id, ok := jobId(c)
	if !ok {
		return
	}

	job, err := h.jobs.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.JobStatusResponse{
		Status:   job.Status,
		Progress: job.Progress,
		Error:    job.ErrorMessage,
	})
}

func (h *httpHandler) Result(c *gin.Context) {
	id, ok := jobId(c)
	if !ok {
		return
	}

	job, obj, err := h.jobs.OpenResult(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotReady) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "not_ready", Status: job.Status})
			return
		}
		h.fail(c, err)
		return
	}
	defer obj.Close()

	c.DataFromReader(http.StatusOK, obj.Size, job.Format.ContentType(), obj, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, job.FileName()),
	})
}

func (h *httpHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.jobs.Stats(c.Request.Context()))
}

// fail maps service errors to responses. Raw error text stays in the log.
func (h *httpHandler) fail(c *gin.Context, err error) {
	var (
		status = http.StatusInternalServerError
		code   = "internal_error"
	)
	switch {
	case errors.Is(err, service.ErrInvalidURL):
		status, code = http.StatusBadRequest, errInvalidURL
	case errors.Is(err, service.ErrInvalidFormat):
		status, code = http.StatusBadRequest, errInvalidFormat
	case errors.Is(err, service.ErrValidation):
		status, code = http.StatusBadRequest, errInvalidRequest
	case errors.Is(err, repository.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrResultMissing):
		status, code = http.StatusNotFound, "file_not_found"
	}

	logger := zerolog.Ctx(c.Request.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Msg("request failed")
	} else {
		logger.Debug().Err(err).Str("code", code).Msg("request rejected")
	}
	c.JSON(status, dto.ErrorResponse{Error: code})
}

func jobId(c *gin.Context) (string, bool) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "missing_id"})
		return "", false
	}
	return id, true
}
