// Package api exposes the caption pipeline and the job ledger over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/captiongen/captions"
	apperrors "github.com/kbukum/captiongen/errors"
	"github.com/kbukum/captiongen/jobs"
	"github.com/kbukum/captiongen/logger"
	"github.com/kbukum/captiongen/storage"
	"github.com/kbukum/captiongen/util"
)

// Generator runs the caption pipeline.
type Generator interface {
	Generate(ctx context.Context, in captions.Input) (*captions.Result, error)
}

// JobReader reads the job ledger.
type JobReader interface {
	Get(ctx context.Context, id string) (*jobs.Job, error)
	ListRecent(ctx context.Context, limit int) ([]jobs.Job, error)
}

// Options are the handler's collaborators. Jobs and Storage are needed for
// the /api/v1/jobs routes only.
type Options struct {
	Generator Generator
	Jobs      JobReader
	Storage   storage.Storage
	// BodyLimit is reported in 413 responses.
	BodyLimit int64
	Logger    *logger.Logger
}

// Handler serves the captiongen API.
type Handler struct {
	gen       Generator
	jobs      JobReader
	store     storage.Storage
	bodyLimit int64
	log       *logger.Logger
}

// NewHandler creates a Handler.
func NewHandler(opts Options) *Handler {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		gen:       opts.Generator,
		jobs:      opts.Jobs,
		store:     opts.Storage,
		bodyLimit: opts.BodyLimit,
		log:       log.WithComponent("api"),
	}
}

// Register mounts the routes. limit guards the upload route and may be nil.
func (h *Handler) Register(r gin.IRouter, limit gin.HandlerFunc) {
	upload := []gin.HandlerFunc{h.Generate}
	if limit != nil {
		upload = append([]gin.HandlerFunc{limit}, upload...)
	}
	r.POST("/generate-captions", upload...)

	if h.jobs == nil {
		return
	}
	v1 := r.Group("/api/v1")
	v1.GET("/jobs", h.ListJobs)
	v1.GET("/jobs/:id", h.GetJob)
	if h.store != nil {
		v1.GET("/jobs/:id/srt", h.DownloadSRT)
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			appErr = apperrors.PayloadTooLarge(util.FormatSize(maxErr.Limit))
		case errors.Is(err, context.Canceled):
			// Client went away; nobody reads the response.
			c.Abort()
			return
		default:
			appErr = apperrors.Internal(err)
		}
	}
	if appErr.HTTPStatus >= 500 {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}
