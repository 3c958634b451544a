package api

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/kbukum/captiongen/captions"
	apperrors "github.com/kbukum/captiongen/errors"
	"github.com/kbukum/captiongen/subtitle"
	"github.com/kbukum/captiongen/util"
)

// JobIDHeader carries the job id of a generated subtitle.
const JobIDHeader = "X-Job-ID"

var acceptedAudio = []string{"audio/mpeg"}

type generateQuery struct {
	Transliterate *bool `form:"transliterate"`
}

// Generate handles POST /generate-captions: a multipart upload in field
// "file" answered with the SRT as an attachment.
func (h *Handler) Generate(c *gin.Context) {
	var q generateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, apperrors.InvalidInput("transliterate", "must be true or false"))
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		h.fail(c, uploadError(err))
		return
	}
	name := util.SanitizeString(fh.Filename)
	if !captions.IsUploadName(name) {
		h.fail(c, apperrors.InvalidInput("file", "only .mp3 files are accepted"))
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer f.Close()
	if err := sniffAudio(f); err != nil {
		h.fail(c, err)
		return
	}

	res, err := h.gen.Generate(c.Request.Context(), captions.Input{
		Filename:      name,
		Body:          f,
		Transliterate: q.Transliterate == nil || *q.Transliterate,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header(JobIDHeader, res.JobID)
	c.Header("Content-Disposition", attachment(path.Base(res.OutputKey)))
	c.Data(http.StatusOK, subtitle.MediaType+"; charset=utf-8", []byte(res.SRT))
}

func uploadError(err error) error {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return err
	case errors.Is(err, http.ErrMissingFile):
		return apperrors.MissingField("file")
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, multipart.ErrMessageTooLarge):
		return apperrors.InvalidInput("file", "expected a multipart/form-data upload")
	default:
		return apperrors.InvalidInput("file", "could not read the upload").WithCause(err)
	}
}

// sniffAudio checks the upload's leading bytes and rewinds it.
func sniffAudio(f multipart.File) error {
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return apperrors.InvalidInput("file", "could not read the upload").WithCause(err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	for _, accepted := range acceptedAudio {
		if mt.Is(accepted) {
			return nil
		}
	}
	return apperrors.UnsupportedMedia(mt.String(), acceptedAudio...)
}

func attachment(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}
