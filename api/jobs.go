package api

import (
	"errors"
	"io"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/captiongen/errors"
	"github.com/kbukum/captiongen/jobs"
	"github.com/kbukum/captiongen/server"
	"github.com/kbukum/captiongen/storage"
	"github.com/kbukum/captiongen/subtitle"
	"github.com/kbukum/captiongen/util"
	"github.com/kbukum/captiongen/validation"
)

type listQuery struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=200"`
}

// ListJobs handles GET /api/v1/jobs.
func (h *Handler) ListJobs(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, apperrors.InvalidInput("limit", "must be a number"))
		return
	}
	if err := validation.Validate(q); err != nil {
		h.fail(c, err)
		return
	}
	if q.Limit == 0 {
		q.Limit = jobs.DefaultListLimit
	}

	list, err := h.jobs.ListRecent(c.Request.Context(), q.Limit)
	if err != nil {
		h.fail(c, apperrors.DatabaseError(err))
		return
	}
	server.RespondOKWithMeta(c, list, &server.Meta{Count: len(list), Limit: q.Limit})
}

// GetJob handles GET /api/v1/jobs/:id.
func (h *Handler) GetJob(c *gin.Context) {
	job, ok := h.lookup(c)
	if !ok {
		return
	}
	server.RespondOK(c, job)
}

// DownloadSRT handles GET /api/v1/jobs/:id/srt for succeeded jobs whose
// output has not expired.
func (h *Handler) DownloadSRT(c *gin.Context) {
	job, ok := h.lookup(c)
	if !ok {
		return
	}
	if job.Status != jobs.StatusSucceeded || job.OutputKey == "" {
		h.fail(c, apperrors.Conflict("job "+job.ID+" is "+string(job.Status)+", no subtitle available").
			WithDetail("status", string(job.Status)))
		return
	}

	rc, err := h.store.Download(c.Request.Context(), job.OutputKey)
	if errors.Is(err, storage.ErrNotFound) {
		h.fail(c, apperrors.NotFound("subtitle", job.ID))
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	defer rc.Close()

	c.Header(JobIDHeader, job.ID)
	c.Header("Content-Disposition", attachment(path.Base(job.OutputKey)))
	c.Header("Content-Type", subtitle.MediaType+"; charset=utf-8")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		h.log.WithContext(c.Request.Context()).Warn("Subtitle download interrupted", map[string]interface{}{
			"job_id": job.ID,
			"error":  err.Error(),
		})
	}
}

func (h *Handler) lookup(c *gin.Context) (*jobs.Job, bool) {
	id := c.Param("id")
	if _, err := util.ValidateUUID("id", id); err != nil {
		h.fail(c, apperrors.InvalidInput("id", "must be a UUID"))
		return nil, false
	}
	job, err := h.jobs.Get(c.Request.Context(), id)
	if errors.Is(err, jobs.ErrNotFound) {
		h.fail(c, apperrors.NotFound("job", id))
		return nil, false
	}
	if err != nil {
		h.fail(c, apperrors.DatabaseError(err))
		return nil, false
	}
	return job, true
}
