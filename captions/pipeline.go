// Package captions runs the caption pipeline: store the upload, convert it
// to speech WAV, recognize words, assemble subtitle blocks, optionally
// transliterate them, then store the SRT and record the job.
package captions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/captiongen/audio"
	apperrors "github.com/kbukum/captiongen/errors"
	"github.com/kbukum/captiongen/jobs"
	"github.com/kbukum/captiongen/logger"
	"github.com/kbukum/captiongen/observability"
	"github.com/kbukum/captiongen/resilience"
	"github.com/kbukum/captiongen/storage"
	"github.com/kbukum/captiongen/subtitle"
	"github.com/kbukum/captiongen/transcription"
	"github.com/kbukum/captiongen/util"
)

// UploadExt is the only accepted upload extension.
const UploadExt = ".mp3"

// Converter produces recognizer-ready WAV from an upload.
type Converter interface {
	ToWAV(ctx context.Context, src, dst string) error
}

// RecognizerSource picks the recognizer for a run.
type RecognizerSource interface {
	Get(ctx context.Context) (transcription.Recognizer, error)
}

// Rewriter transliterates subtitle blocks.
type Rewriter interface {
	Enabled() bool
	Rewrite(ctx context.Context, blocks []subtitle.Block) ([]subtitle.Block, error)
}

// Options are the pipeline's collaborators. Jobs, Rewriter, Metrics and
// Logger are optional.
type Options struct {
	Config      Config
	Audio       audio.Config
	Language    string
	UploadLimit string
	// WorkDir holds staged files for backends without local paths. Empty
	// uses the system temp directory.
	WorkDir string

	Storage     storage.Storage
	Converter   Converter
	Recognizers RecognizerSource
	Rewriter    Rewriter
	Jobs        *jobs.Store
	Metrics     *observability.Metrics
	Logger      *logger.Logger
}

// Input is one caption request.
type Input struct {
	Filename      string
	Body          io.Reader
	Transliterate bool
}

// Result is a finished run.
type Result struct {
	JobID          string           `json:"job_id"`
	Filename       string           `json:"filename"`
	OutputKey      string           `json:"output_key"`
	SRT            string           `json:"-"`
	Blocks         []subtitle.Block `json:"blocks"`
	Provider       string           `json:"provider"`
	AudioDuration  time.Duration    `json:"audio_duration"`
	Transliterated bool             `json:"transliterated"`
	Elapsed        time.Duration    `json:"elapsed"`
}

// Pipeline generates captions. It is safe for concurrent use.
type Pipeline struct {
	cfg         Config
	format      audio.Format
	chunkFrames int
	language    string
	uploadLimit string
	workDir     string

	store       storage.Storage
	conv        Converter
	recognizers RecognizerSource
	rewriter    Rewriter
	jobs        *jobs.Store
	metrics     *observability.Metrics
	bulkhead    *resilience.Bulkhead
	log         *logger.Logger
	now         func() time.Time
}

// New creates a Pipeline.
func New(opts Options) (*Pipeline, error) {
	cfg := opts.Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case opts.Storage == nil:
		return nil, errors.New("captions: storage is required")
	case opts.Converter == nil:
		return nil, errors.New("captions: converter is required")
	case opts.Recognizers == nil:
		return nil, errors.New("captions: recognizer source is required")
	}
	ac := opts.Audio
	ac.ApplyDefaults()
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Pipeline{
		cfg:         cfg,
		format:      ac.SpeechFormat(),
		chunkFrames: ac.ChunkFrames,
		language:    opts.Language,
		uploadLimit: opts.UploadLimit,
		workDir:     opts.WorkDir,
		store:       opts.Storage,
		conv:        opts.Converter,
		recognizers: opts.Recognizers,
		rewriter:    opts.Rewriter,
		jobs:        opts.Jobs,
		metrics:     opts.Metrics,
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "captions",
			MaxConcurrent: cfg.MaxConcurrent,
			MaxWait:       cfg.MaxWait,
		}),
		log: log.WithComponent("captions"),
		now: time.Now,
	}, nil
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// InFlight returns the number of runs holding a slot.
func (p *Pipeline) InFlight() int { return p.bulkhead.InUse() }

// IsUploadName reports whether name carries the accepted extension.
func IsUploadName(name string) bool {
	return strings.EqualFold(filepath.Ext(strings.TrimSpace(name)), UploadExt)
}

// OutputName is the download name for an upload: the upload's stem, the
// date and a "_yt.srt" suffix.
func OutputName(upload string, at time.Time) string {
	return fmt.Sprintf("%s_%s_yt.srt", util.SafeStem(upload, "captions"), at.Format(time.DateOnly))
}

// Generate runs the pipeline for in. Errors are *errors.AppError values
// carrying the job id when one was recorded.
func (p *Pipeline) Generate(ctx context.Context, in Input) (*Result, error) {
	if !IsUploadName(in.Filename) {
		return nil, apperrors.InvalidInput("file", "only .mp3 files are accepted")
	}
	if in.Body == nil {
		return nil, apperrors.MissingField("file")
	}
	transliterate := in.Transliterate && p.rewriter != nil && p.rewriter.Enabled()

	jobID, err := p.createJob(ctx, in.Filename, transliterate)
	if err != nil {
		return nil, err
	}
	ctx = logger.ContextWithJobID(ctx, jobID)
	ctx, span := observability.StartSpan(ctx, "captions.generate")
	span.SetAttributes(
		attribute.String(observability.AttrJobID, jobID),
		attribute.String(observability.AttrFilename, in.Filename),
	)
	defer span.End()

	log := p.log.WithContext(ctx)
	if p.metrics != nil {
		p.metrics.JobStarted(ctx)
	}
	start := p.now()

	res, err := resilience.ExecuteWithResult(ctx, p.bulkhead, func() (*Result, error) {
		return p.run(ctx, jobID, in, transliterate)
	})
	status := string(jobs.StatusSucceeded)
	if err != nil {
		status = string(jobs.StatusFailed)
	}
	if p.metrics != nil {
		p.metrics.JobFinished(ctx, status)
	}

	if err != nil {
		observability.SetSpanError(span, err)
		p.failJob(ctx, jobID, err)
		appErr := p.classify(err)
		fields := map[string]interface{}{"error": err.Error(), "code": string(appErr.Code)}
		if appErr.HTTPStatus >= 500 {
			log.Error("Caption generation failed", fields)
		} else {
			log.Warn("Caption generation rejected", fields)
		}
		return nil, appErr.WithDetail("job_id", jobID)
	}

	res.Elapsed = p.now().Sub(start)
	span.SetAttributes(
		attribute.Int(observability.AttrBlocks, len(res.Blocks)),
		attribute.String(observability.AttrProvider, res.Provider),
	)
	log.Info("Captions generated", map[string]interface{}{
		"blocks":         len(res.Blocks),
		"provider":       res.Provider,
		"audio_seconds":  res.AudioDuration.Seconds(),
		"transliterated": res.Transliterated,
		"elapsed_ms":     res.Elapsed.Milliseconds(),
		"output":         res.OutputKey,
	})
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, jobID string, in Input, transliterate bool) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	if p.jobs != nil {
		if err := p.jobs.MarkRunning(ctx, jobID); err != nil {
			return nil, err
		}
	}

	tmp := path.Join(p.cfg.TempPrefix, jobID)
	uploadKey, wavKey := tmp+"/input"+UploadExt, tmp+"/audio.wav"
	defer p.cleanup(context.WithoutCancel(ctx), uploadKey, wavKey)

	res := &Result{JobID: jobID, Transliterated: transliterate}

	err := p.stage(ctx, StageUpload, func(ctx context.Context) error {
		n, err := p.store.Upload(ctx, uploadKey, in.Body)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.InvalidInput("file", "the uploaded file is empty")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ws, err := p.openWorkspace(ctx, jobID, uploadKey, wavKey)
	if err != nil {
		return nil, err
	}
	defer p.closeWorkspace(ctx, ws)
	wavPath := ws.wav

	err = p.stage(ctx, StageConvert, func(ctx context.Context) error {
		if err := p.conv.ToWAV(ctx, ws.upload, wavPath); err != nil {
			return err
		}
		r, err := audio.OpenWAV(wavPath, p.format)
		if err != nil {
			return err
		}
		res.AudioDuration = r.Duration()
		return r.Close()
	})
	if err != nil {
		return nil, err
	}

	rec, err := p.recognizers.Get(ctx)
	if err != nil {
		return nil, apperrors.ServiceUnavailable("recognizer").WithCause(err)
	}
	res.Provider = rec.Name()

	var blocks []subtitle.Block
	err = p.stage(ctx, StageTranscribe, func(ctx context.Context) error {
		tr, err := transcription.Transcribe(ctx, rec, transcription.Request{
			AudioPath:   wavPath,
			Language:    p.language,
			Format:      p.format,
			ChunkFrames: p.chunkFrames,
		})
		if err != nil {
			return err
		}
		blocks = tr.Blocks
		return nil
	})
	if err != nil {
		return nil, err
	}

	if transliterate {
		err = p.stage(ctx, StageTransliterate, func(ctx context.Context) error {
			rewritten, err := p.rewriter.Rewrite(ctx, blocks)
			if err != nil {
				return err
			}
			blocks = rewritten
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	res.Blocks = blocks
	res.SRT = subtitle.Render(blocks)
	res.Filename = OutputName(in.Filename, p.now())
	res.OutputKey = path.Join(p.cfg.OutputPrefix, jobID, res.Filename)

	err = p.stage(ctx, StageStore, func(ctx context.Context) error {
		_, err := p.store.Upload(ctx, res.OutputKey, strings.NewReader(res.SRT))
		return err
	})
	if err != nil {
		return nil, err
	}

	if p.jobs != nil {
		err := p.jobs.Complete(ctx, jobID, jobs.Outcome{
			Provider:      res.Provider,
			Blocks:        len(blocks),
			AudioDuration: res.AudioDuration,
			OutputKey:     res.OutputKey,
		})
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (p *Pipeline) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, st := observability.StartStage(ctx, p.metrics, name,
		attribute.String(observability.AttrJobID, logger.JobIDFromContext(ctx)))
	err := fn(ctx)
	d := st.End(ctx, err)
	p.log.WithContext(ctx).Debug("Stage finished", map[string]interface{}{
		"stage":       name,
		"duration_ms": d.Milliseconds(),
		"ok":          err == nil,
	})
	if err != nil {
		return &StageError{Stage: name, Err: err}
	}
	return nil
}

func (p *Pipeline) classify(err error) *apperrors.AppError {
	if errors.Is(err, storage.ErrTooLarge) {
		return apperrors.PayloadTooLarge(p.uploadLimit).WithCause(err)
	}
	return Classify(err)
}

func (p *Pipeline) createJob(ctx context.Context, filename string, transliterate bool) (string, error) {
	if p.jobs == nil {
		return uuid.NewString(), nil
	}
	job, err := p.jobs.Create(ctx, filepath.Base(filename), transliterate)
	if err != nil {
		return "", apperrors.DatabaseError(err)
	}
	return job.ID, nil
}

func (p *Pipeline) failJob(ctx context.Context, jobID string, cause error) {
	if p.jobs == nil {
		return
	}
	if err := p.jobs.Fail(context.WithoutCancel(ctx), jobID, cause); err != nil {
		p.log.WithContext(ctx).Warn("Failed to record job failure", map[string]interface{}{"error": err.Error()})
	}
}

func (p *Pipeline) cleanup(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := p.store.Delete(ctx, key); err != nil {
			p.log.WithContext(ctx).Warn("Temporary file not removed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
}
