package captions

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/kbukum/captiongen/errors"
	"github.com/kbukum/captiongen/resilience"
	"github.com/kbukum/captiongen/subtitle"
)

// Pipeline stage names, used for spans, metrics and error mapping.
const (
	StageUpload        = "upload"
	StageConvert       = "convert"
	StageTranscribe    = "transcribe"
	StageTransliterate = "transliterate"
	StageStore         = "store"
)

// StageError tags an error with the stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Classify maps a pipeline error to the AppError a client sees.
func Classify(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	switch {
	case errors.Is(err, resilience.ErrBulkheadFull):
		return apperrors.Busy().WithCause(err)
	case errors.Is(err, subtitle.ErrEmptySession):
		return apperrors.NoSpeech().WithCause(err)
	case subtitle.IsInvalidEvent(err):
		return apperrors.ExternalServiceError("recognizer", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("caption generation").WithCause(err)
	}

	var se *StageError
	if errors.As(err, &se) {
		switch se.Stage {
		case StageConvert:
			return apperrors.InvalidInput("file", "the upload could not be decoded as audio").WithCause(err)
		case StageTranscribe:
			return apperrors.ExternalServiceError("recognizer", err)
		case StageTransliterate:
			return apperrors.ExternalServiceError("llm", err)
		}
	}
	return apperrors.Internal(err)
}
